// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package events

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/eventdb"
	"github.com/poolstake/poold/ledger"
)

type Events struct {
	db    *eventdb.EventDB
	limit uint64
}

// New creates the events api. limit caps the page size, 0 means no cap.
func New(db *eventdb.EventDB, limit uint64) *Events {
	return &Events{db, limit}
}

func parseUint(q url.Values, name string) (*uint64, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, utils.BadRequest(err, name)
	}
	return &v, nil
}

// parseFilter reads a filter from query parameters.
func (e *Events) parseFilter(q url.Values) (*eventdb.Filter, error) {
	filter := &eventdb.Filter{Name: q.Get("name")}

	if s := q.Get("pool"); s != "" {
		id, err := ledger.ParsePoolID(s)
		if err != nil {
			return nil, utils.BadRequest(err, "pool")
		}
		filter.PoolID = &id
	}
	if s := q.Get("account"); s != "" {
		addr, err := ledger.ParseAddress(s)
		if err != nil {
			return nil, utils.BadRequest(err, "account")
		}
		filter.Account = &addr
	}

	from, err := parseUint(q, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseUint(q, "to")
	if err != nil {
		return nil, err
	}
	if from != nil || to != nil {
		r := &eventdb.Range{Unit: eventdb.Block, To: math.MaxUint32}
		switch unit := eventdb.RangeType(q.Get("unit")); unit {
		case "", eventdb.Block:
		case eventdb.Time:
			r.Unit = eventdb.Time
			r.To = math.MaxInt64
		default:
			return nil, utils.BadRequest(fmt.Errorf("unknown unit %q", unit), "unit")
		}
		if from != nil {
			r.From = *from
		}
		if to != nil {
			r.To = *to
		}
		if r.From > r.To {
			return nil, utils.BadRequest(errors.New("from greater than to"), "range")
		}
		filter.Range = r
	}

	switch order := eventdb.OrderType(q.Get("order")); order {
	case "", eventdb.ASC:
	case eventdb.DESC:
		filter.Order = eventdb.DESC
	default:
		return nil, utils.BadRequest(fmt.Errorf("unknown order %q", order), "order")
	}

	offset, err := parseUint(q, "offset")
	if err != nil {
		return nil, err
	}
	limit, err := parseUint(q, "limit")
	if err != nil {
		return nil, err
	}
	if limit == nil && e.limit > 0 {
		limit = &e.limit
	}
	if limit != nil {
		if e.limit > 0 && *limit > e.limit {
			return nil, utils.Forbidden(fmt.Errorf("limit %d exceeds %d", *limit, e.limit), "limit")
		}
		filter.Options = &eventdb.Options{Limit: *limit}
		if offset != nil {
			filter.Options.Offset = *offset
		}
	} else if offset != nil {
		filter.Options = &eventdb.Options{Offset: *offset, Limit: math.MaxInt64}
	}
	return filter, nil
}

func (e *Events) handleFilter(w http.ResponseWriter, req *http.Request) error {
	filter, err := e.parseFilter(req.URL.Query())
	if err != nil {
		return err
	}
	events, err := e.db.Filter(filter)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*eventdb.Event{}
	}
	return utils.WriteJSON(w, events)
}

func (e *Events) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /events").
		HandlerFunc(utils.WrapHandlerFunc(e.handleFilter))
}
