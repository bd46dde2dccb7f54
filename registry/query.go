/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// RQLOp is one of the three basic RQL predicates §4.5 names explicitly;
// the reference implementation's fuller RQL grammar is an explicit Open
// Question in spec.md and is not chased here (see DESIGN.md).
type RQLOp string

const (
	RQLEq       RQLOp = "eq"
	RQLMatches  RQLOp = "matches"
	RQLContains RQLOp = "contains"
)

// RQLPredicate is one parsed `<op>(<field>,<value>)` term.
type RQLPredicate struct {
	Op    RQLOp
	Field string
	Value string
}

func (p RQLPredicate) matches(fields map[string]interface{}) bool {
	val := stringify(fields[p.Field])
	switch p.Op {
	case RQLEq:
		return val == p.Value
	case RQLContains:
		return strings.Contains(val, p.Value)
	case RQLMatches:
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return false
		}
		return re.MatchString(val)
	default:
		return false
	}
}

// Query is a parsed `GET /<type>s?<filters>` request: flat key/value
// equality filters plus any RQL predicates, both ANDed together (§4.5).
type Query struct {
	Type   model.Type
	Equals map[string]string
	RQL    []RQLPredicate
}

func (q Query) Matches(r model.Resource) bool {
	if r.Envelope().Type != q.Type {
		return false
	}
	if len(q.Equals) == 0 && len(q.RQL) == 0 {
		return true
	}
	fields := toFields(r)
	for k, want := range q.Equals {
		if stringify(fields[k]) != want {
			return false
		}
	}
	for _, p := range q.RQL {
		if !p.matches(fields) {
			return false
		}
	}
	return true
}

// toFields flattens a resource to its top-level JSON fields so Query
// can match against arbitrary field names without a switch per type;
// id/version/label are always present via the embedded Envelope.
func toFields(r model.Resource) map[string]interface{} {
	buf, err := cmn.Marshal(r)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	_ = cmn.Unmarshal(buf, &m)
	return m
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Page is the result of a paginated query (§4.5): results plus the
// opaque TAI cursors a caller renders as X-Paging-Since/Until headers
// and rel=prev|next|first|last Link entries.
type Page struct {
	Resources []model.Resource
	Since     cmn.TAITime // version of the oldest result returned (or the window floor if empty)
	Until     cmn.TAITime // version of the newest result returned (or the window ceiling if empty)
	Limit     int
	HasMore   bool
}

// Engine runs queries against a Store's deterministic scan order.
type Engine struct {
	Store *model.Store
}

func NewEngine(store *model.Store) *Engine { return &Engine{Store: store} }

// Query runs q over every resource with version in (since, until],
// returning at most limit results (0 = unlimited) and the cursor to
// continue from for a "next" page.
func (e *Engine) Query(q Query, since, until *cmn.TAITime, limit int) Page {
	var matched []model.Resource
	for _, r := range e.Store.Scan(func(r model.Resource) bool { return q.Matches(r) }) {
		v, err := cmn.ParseTAITime(r.Envelope().Version)
		if err != nil {
			continue
		}
		if since != nil && !v.After(*since) {
			continue
		}
		if until != nil && v.After(*until) {
			continue
		}
		matched = append(matched, r)
	}

	page := Page{Limit: limit}
	if limit > 0 && len(matched) > limit {
		page.Resources = matched[:limit]
		page.HasMore = true
	} else {
		page.Resources = matched
	}
	if len(page.Resources) > 0 {
		page.Since, _ = cmn.ParseTAITime(page.Resources[0].Envelope().Version)
		page.Until, _ = cmn.ParseTAITime(page.Resources[len(page.Resources)-1].Envelope().Version)
	} else {
		if since != nil {
			page.Since = *since
		}
		if until != nil {
			page.Until = *until
		}
	}
	return page
}

// FindActive returns r only if it exists and has not lapsed its
// expiry window, matching §4.5's "404 when absent or expired" for the
// single-resource GET (a Node between its expiry and the next GC
// sweep must already read as gone).
func (e *Engine) FindActive(id string, expirySeconds int64, nowUnix int64) (model.Resource, bool) {
	r, ok := e.Store.Find(id)
	if !ok {
		return nil, false
	}
	env := r.Envelope()
	if env.Health != model.NeverExpire && nowUnix-env.Health > expirySeconds {
		return nil, false
	}
	return r, true
}
