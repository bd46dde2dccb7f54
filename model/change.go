/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import "github.com/nmos-community/nmos-core/cmn"

// ChangeRecord is the `{timestamp, pre, post, type}` change appended by
// every successful mutation (§4.1b) and from which a Registry derives
// subscription grains (§4.6). Seq is a process-local, strictly
// increasing sequence number used as the store's change-feed cursor;
// it is unrelated to Version, which is the resource's own TAI stamp.
type ChangeRecord struct {
	Seq       int64
	Timestamp cmn.TAITime
	Type      Type
	ID        string
	Pre       Resource // nil on create
	Post      Resource // nil on delete
}

func (c ChangeRecord) IsCreate() bool { return c.Pre == nil && c.Post != nil }
func (c ChangeRecord) IsDelete() bool { return c.Pre != nil && c.Post == nil }
func (c ChangeRecord) IsUpdate() bool { return c.Pre != nil && c.Post != nil }
