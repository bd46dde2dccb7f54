/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"time"

	"github.com/nmos-community/nmos-core/model"
)

// SubscriptionRequest is a parsed `POST /subscriptions` body (§4.5).
type SubscriptionRequest struct {
	ResourcePath    string
	Params          map[string]string
	Persist         bool
	MaxUpdateRateMs int
	Authorization   bool
}

// CreateSubscription returns an existing non-persistent, unexpired
// subscription if req is equivalent to it (§4.5's dedup rule: same
// resource_path + params + authorization), otherwise inserts a new one.
func (r *Registry) CreateSubscription(req SubscriptionRequest, wsHrefBase string) (*model.Subscription, error) {
	candidate := &model.Subscription{
		Envelope:        model.Envelope{ID: model.NewID(), Type: model.TypeSubscription, Health: model.NeverExpire},
		ResourcePath:    req.ResourcePath,
		Params:          req.Params,
		Persist:         req.Persist,
		MaxUpdateRateMs: req.MaxUpdateRateMs,
		Authorization:   req.Authorization,
	}
	key := candidate.DedupKey()

	if !req.Persist {
		for _, existing := range r.Store.ScanType(model.TypeSubscription) {
			sub, ok := existing.(*model.Subscription)
			if !ok || sub.Persist {
				continue
			}
			if sub.DedupKey() == key {
				return sub, nil
			}
		}
	}

	candidate.WsHref = wsHrefBase + "/" + candidate.ID
	if err := r.Store.Insert(candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// RateWindow converts a subscription's max_update_rate_ms into a
// time.Duration, defaulting to an immediate-as-available rate when the
// field is unset or non-positive.
func RateWindow(maxUpdateRateMs int) time.Duration {
	if maxUpdateRateMs <= 0 {
		return 0
	}
	return time.Duration(maxUpdateRateMs) * time.Millisecond
}
