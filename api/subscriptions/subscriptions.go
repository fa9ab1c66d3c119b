// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/poolstake/poold/api/utils"
	"github.com/poolstake/poold/chain"
	"github.com/poolstake/poold/eventdb"
	"github.com/poolstake/poold/ledger"
	"github.com/poolstake/poold/log"
	"github.com/poolstake/poold/txpool"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	pingPeriod = 20 * time.Second
	pongWait   = pingPeriod * 2
	writeWait  = 10 * time.Second
)

var errFeedClosed = errors.New("feed closed")

// reader blocks until there are messages to send.
type reader func(ctx context.Context) ([]any, error)

type Subscriptions struct {
	chain    *chain.Chain
	pool     *txpool.TxPool
	upgrader *websocket.Upgrader
	done     chan struct{}
	closed   sync.Once
	wg       sync.WaitGroup
}

// New creates the subscriptions api. An allowed origin of "*" accepts any origin.
func New(c *chain.Chain, allowedOrigins []string, pool *txpool.TxPool) *Subscriptions {
	return &Subscriptions{
		chain: c,
		pool:  pool,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == strings.ToLower(u.Host) || allowed == strings.ToLower(origin) {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

func parseEventFilter(q url.Values) (*eventdb.Filter, error) {
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
	return filter, nil
}

// appliedReader reads applied blocks and converts each with convert.
func appliedReader(ch <-chan *chain.Applied, subErr <-chan error, convert func(*chain.Applied) []any) reader {
	return func(ctx context.Context) ([]any, error) {
		for {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case err := <-subErr:
				if err == nil {
					err = errFeedClosed
				}
				return nil, err
			case a := <-ch:
				if msgs := convert(a); len(msgs) > 0 {
					return msgs, nil
				}
			}
		}
	}
}

func (s *Subscriptions) handleSubscribeEvents(w http.ResponseWriter, req *http.Request) error {
	filter, err := parseEventFilter(req.URL.Query())
	if err != nil {
		return err
	}
	ch := make(chan *chain.Applied, 16)
	sub := s.chain.Subscribe(ch)
	defer sub.Unsubscribe()

	return s.pipe(w, req, appliedReader(ch, sub.Err(), func(a *chain.Applied) []any {
		var msgs []any
		for _, ev := range eventdb.BlockEvents(a) {
			if filter.Match(ev) {
				msgs = append(msgs, ev)
			}
		}
		return msgs
	}))
}

func (s *Subscriptions) handleSubscribeBlocks(w http.ResponseWriter, req *http.Request) error {
	ch := make(chan *chain.Applied, 16)
	sub := s.chain.Subscribe(ch)
	defer sub.Unsubscribe()

	return s.pipe(w, req, appliedReader(ch, sub.Err(), func(a *chain.Applied) []any {
		return []any{newBlockMessage(a)}
	}))
}

func (s *Subscriptions) handleSubscribePendingTxs(w http.ResponseWriter, req *http.Request) error {
	if s.pool == nil {
		return utils.NotFound("no tx pool")
	}
	ch := make(chan *txpool.TxEvent, 64)
	sub := s.pool.SubscribeTxEvent(ch)
	defer sub.Unsubscribe()

	return s.pipe(w, req, func(ctx context.Context) ([]any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errFeedClosed
			}
			return nil, err
		case ev := <-ch:
			return []any{&PendingTxMessage{ID: ev.Tx.ID()}}, nil
		}
	})
}

// pipe upgrades the connection and writes what read yields as JSON messages
// until the client goes away, the feed ends or Close is called.
func (s *Subscriptions) pipe(w http.ResponseWriter, req *http.Request, read reader) error {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has responded
		logger.Debug("upgrade failed", "err", err)
		return nil
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	// drain client frames to process pongs and notice close
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	msgs := make(chan []any)
	readErr := make(chan error, 1)
	go func() {
		for {
			m, err := read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closeWith := func(code int, text string) {
		msg := websocket.FormatCloseMessage(code, text)
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	for {
		select {
		case <-ctx.Done():
			closeWith(websocket.CloseGoingAway, "")
			return nil
		case err := <-readErr:
			if ctx.Err() == nil {
				logger.Debug("subscription ended", "err", err)
				closeWith(websocket.CloseInternalServerErr, err.Error())
			}
			return nil
		case batch := <-msgs:
			for _, m := range batch {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(m); err != nil {
					logger.Debug("write failed", "err", err)
					return nil
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// Close closes all open subscriptions.
func (s *Subscriptions) Close() {
	s.closed.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/events").
		Methods(http.MethodGet).
		Name("WS /subscriptions/events").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeEvents))
	sub.Path("/blocks").
		Methods(http.MethodGet).
		Name("WS /subscriptions/blocks").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeBlocks))
	sub.Path("/txpool").
		Methods(http.MethodGet).
		Name("WS /subscriptions/txpool").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribePendingTxs))
}
