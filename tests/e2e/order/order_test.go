//go:build e2e

package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"cinema-order-engine/internal/handler/api"
	reqdto "cinema-order-engine/internal/handler/dto/request"
	"cinema-order-engine/internal/handler/dto/response"
	"cinema-order-engine/internal/pkg/clock"
	"cinema-order-engine/internal/usecase/commands"
	"cinema-order-engine/internal/usecase/shared"
	"cinema-order-engine/internal/worker"
	"cinema-order-engine/tests/common/authtest"
	"cinema-order-engine/tests/common/dbtest"
	"cinema-order-engine/tests/common/httptest"
	"cinema-order-engine/tests/e2e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

const ordersURL = "/api/orders"

type orderSuite struct {
	e2e.SharedSuite
	jwt *authtest.JWTHelper

	showingID int64
	popcornID int64
	sodaID    int64
	soldOutID int64
}

func TestOrderSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(orderSuite))
}

func (s *orderSuite) SetupSuite() {
	s.SharedSuite.SetupSuite()
	s.jwt = authtest.NewJWTHelper(s.Config.JWT)
}

func (s *orderSuite) SetupTest() {
	s.SharedSuite.SetupTest()
	s.seed()
}

func (s *orderSuite) SetupSubTest() {
	s.SharedSuite.SetupSubTest()
	s.seed()
}

func (s *orderSuite) seed() {
	t := s.T()
	dbtest.CreateUser(t, s.DB, "alice", 200000)
	dbtest.CreateUser(t, s.DB, "bob", 200000)
	dbtest.CreateUser(t, s.DB, "carol", 10000)

	movieID := dbtest.CreateMovie(t, s.DB, "Dune: Part Two")
	s.showingID = dbtest.CreateShowing(t, s.DB, movieID, "Studio 1",
		time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC), 50000)
	s.popcornID = dbtest.CreateProduct(t, s.DB, "Popcorn", "snack", 25000, true)
	s.sodaID = dbtest.CreateProduct(t, s.DB, "Soda", "drink", 15000, true)
	s.soldOutID = dbtest.CreateProduct(t, s.DB, "Nachos", "snack", 30000, false)
}

func (s *orderSuite) place(userName string, req reqdto.PlaceOrderRequest, headers map[string]string) (int, []byte) {
	t := s.T()
	token := s.jwt.GenerateToken(t, userName)
	w := httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, ordersURL, req, token, headers)
	return w.Code, w.Body.Bytes()
}

func seats(labels ...string) []reqdto.SeatInput {
	out := make([]reqdto.SeatInput, len(labels))
	for i, l := range labels {
		out[i] = reqdto.SeatInput{Label: l}
	}
	return out
}

func (s *orderSuite) bookedSeats() []string {
	rows, err := s.DB.Query(s.T().Context(),
		"SELECT seat_row || '-' || seat_col FROM seat_bookings ORDER BY seat_row, seat_col")
	require.NoError(s.T(), err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		require.NoError(s.T(), rows.Scan(&label))
		out = append(out, label)
	}
	require.NoError(s.T(), rows.Err())
	return out
}

func (s *orderSuite) TestPlaceOrder_TicketsAndConcessions() {
	t := s.T()
	req := reqdto.PlaceOrderRequest{
		ShowingID: &s.showingID,
		Seats:     seats("C-4", "C-5"),
		Items:     []reqdto.ItemInput{{ProductID: s.popcornID, Quantity: 2}, {ProductID: s.sodaID, Quantity: 1}},
	}
	token := s.jwt.GenerateToken(t, "alice")

	w := httptest.PerformRequest(t, s.Router, http.MethodPost, ordersURL, req, token)

	var res response.OrderResponse
	httptest.AssertSuccessResponse(t, w, http.StatusCreated, &res)
	assert.Equal(t, "alice", res.UserName)
	assert.Equal(t, int64(165000), res.Total)
	assert.Equal(t, int64(50000), res.TicketUnitPrice)
	assert.Equal(t, 2, res.TicketSeatCount)
	assert.Equal(t, "Dune: Part Two", res.MovieTitle)
	assert.Equal(t, "Studio 1", res.StudioName)
	assert.Equal(t, []string{"C-4", "C-5"}, res.Seats)
	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(50000), res.Items[0].Subtotal)
	assert.Equal(t, int64(35000), res.RemainingBalance)
	assert.False(t, res.Replayed)

	assert.Equal(t, int64(35000), dbtest.Balance(t, s.DB, "alice"))
	assert.Equal(t, []string{"C-4", "C-5"}, s.bookedSeats())
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "orders"))
	assert.Equal(t, 2, dbtest.CountRows(t, s.DB, "order_seats"))
	assert.Equal(t, 2, dbtest.CountRows(t, s.DB, "order_items"))
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "order_events"))
}

func (s *orderSuite) TestPlaceOrder_ConcessionsOnly() {
	t := s.T()
	req := reqdto.PlaceOrderRequest{
		Items: []reqdto.ItemInput{{ProductID: s.sodaID, Quantity: 3}},
	}

	w := httptest.PerformRequest(t, s.Router, http.MethodPost, ordersURL, req, s.jwt.GenerateToken(t, "alice"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res response.OrderResponse
	require.NoError(t, httptest.DecodeResponseBody(t, w.Body, &res))
	assert.Nil(t, res.ShowingID)
	assert.Empty(t, res.Seats)
	assert.Zero(t, res.TicketSeatCount)
	assert.Equal(t, int64(45000), res.Total)
	assert.Equal(t, int64(155000), dbtest.Balance(t, s.DB, "alice"))
	assert.Zero(t, dbtest.CountRows(t, s.DB, "seat_bookings"))
}

func (s *orderSuite) TestPlaceOrder_ShowingZeroMeansConcessionsOnly() {
	t := s.T()
	zero := int64(0)
	req := reqdto.PlaceOrderRequest{
		ShowingID: &zero,
		Items:     []reqdto.ItemInput{{ProductID: s.popcornID, Quantity: 1}},
	}

	code, body := s.place("alice", req, nil)
	require.Equal(t, http.StatusCreated, code, string(body))
	var res response.OrderResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Nil(t, res.ShowingID)
	assert.Equal(t, int64(25000), res.Total)
	assert.Zero(t, dbtest.CountRows(t, s.DB, "seat_bookings"))
}

func (s *orderSuite) TestPlaceOrder_Rejections() {
	unknownShowing := int64(9999)
	tests := []struct {
		name           string
		user           string
		req            func() reqdto.PlaceOrderRequest
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "empty order",
			user:           "alice",
			req:            func() reqdto.PlaceOrderRequest { return reqdto.PlaceOrderRequest{} },
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "EMPTY_ORDER",
		},
		{
			name: "showing without seats",
			user: "alice",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{ShowingID: &s.showingID}
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "SEATS_REQUIRED",
		},
		{
			name: "seat outside the grid",
			user: "alice",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("J-1")}
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_SEAT",
		},
		{
			name: "unknown showing",
			user: "alice",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{ShowingID: &unknownShowing, Seats: seats("A-1")}
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "SHOWING_NOT_FOUND",
		},
		{
			name: "unknown user",
			user: "mallory",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{Items: []reqdto.ItemInput{{ProductID: s.sodaID, Quantity: 1}}}
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "USER_NOT_FOUND",
		},
		{
			name: "unavailable product",
			user: "alice",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{Items: []reqdto.ItemInput{{ProductID: s.soldOutID, Quantity: 1}}}
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "PRODUCT_UNAVAILABLE",
		},
		{
			name: "zero quantity",
			user: "alice",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{Items: []reqdto.ItemInput{{ProductID: s.sodaID, Quantity: 0}}}
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_QUANTITY",
		},
		{
			name: "insufficient balance",
			user: "carol",
			req: func() reqdto.PlaceOrderRequest {
				return reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("A-1")}
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedCode:   "INSUFFICIENT_BALANCE",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			t := s.T()
			token := s.jwt.GenerateToken(t, tt.user)

			w := httptest.PerformRequest(t, s.Router, http.MethodPost, ordersURL, tt.req(), token)

			httptest.AssertErrorCode(t, w, tt.expectedStatus, tt.expectedCode)
			assert.Zero(t, dbtest.CountRows(t, s.DB, "orders"))
			assert.Zero(t, dbtest.CountRows(t, s.DB, "seat_bookings"))
			assert.Zero(t, dbtest.CountRows(t, s.DB, "order_events"))
			assert.Equal(t, int64(10000), dbtest.Balance(t, s.DB, "carol"))
			assert.Equal(t, int64(200000), dbtest.Balance(t, s.DB, "alice"))
		})
	}
}

func (s *orderSuite) TestPlaceOrder_SeatConflictRollsBackWholeOrder() {
	t := s.T()
	code, body := s.place("bob", reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("B-3")}, nil)
	require.Equal(t, http.StatusCreated, code, string(body))

	req := reqdto.PlaceOrderRequest{
		ShowingID: &s.showingID,
		Seats:     seats("B-2", "B-3"),
		Items:     []reqdto.ItemInput{{ProductID: s.popcornID, Quantity: 1}},
	}
	token := s.jwt.GenerateToken(t, "alice")
	w := httptest.PerformRequest(t, s.Router, http.MethodPost, ordersURL, req, token)

	errBody := httptest.AssertErrorCode(t, w, http.StatusConflict, "SEAT_CONFLICT")
	assert.Equal(t, "B-3", errBody.Detail["seat"])
	assert.Equal(t, []string{"B-3"}, s.bookedSeats(), "B-2 must not stay claimed")
	assert.Equal(t, int64(200000), dbtest.Balance(t, s.DB, "alice"))
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "orders"))
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "order_seats"))
	assert.Zero(t, dbtest.CountRows(t, s.DB, "order_items"))
}

func (s *orderSuite) TestPlaceOrder_ConcurrentBuyersNeverShareASeat() {
	t := s.T()
	const buyers = 8
	for i := range buyers {
		dbtest.CreateUser(t, s.DB, "buyer"+string(rune('a'+i)), 200000)
	}

	var (
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	g, _ := errgroup.WithContext(t.Context())
	for i := range buyers {
		user := "buyer" + string(rune('a'+i))
		token := s.jwt.GenerateToken(t, user)
		g.Go(func() error {
			req := reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("D-4", "D-5")}
			w := httptest.PerformRequest(t, s.Router, http.MethodPost, ordersURL, req, token)
			mu.Lock()
			statuses[w.Code]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, statuses[http.StatusCreated], "statuses: %v", statuses)
	assert.Equal(t, buyers-1, statuses[http.StatusConflict], "statuses: %v", statuses)
	assert.Equal(t, []string{"D-4", "D-5"}, s.bookedSeats())
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "orders"))
}

func (s *orderSuite) TestPlaceOrder_ConcurrentSpendingNeverOverdraws() {
	t := s.T()
	// carol can afford exactly one soda at 10000
	_, err := s.DB.Exec(t.Context(), "UPDATE products SET price = 10000 WHERE id = $1", s.sodaID)
	require.NoError(t, err)

	token := s.jwt.GenerateToken(t, "carol")
	req := reqdto.PlaceOrderRequest{Items: []reqdto.ItemInput{{ProductID: s.sodaID, Quantity: 1}}}

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = httptest.PerformRequest(t, s.Router, http.MethodPost, ordersURL, req, token).Code
		}()
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusPaymentRequired, c)
		}
	}
	assert.Equal(t, 1, created)
	assert.Zero(t, dbtest.Balance(t, s.DB, "carol"))
}

func (s *orderSuite) TestPlaceOrder_IdempotentReplay() {
	t := s.T()
	key := uuid.NewString()
	headers := map[string]string{api.IdempotencyKeyHeader: key}
	req := reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("E-1")}

	code, body := s.place("alice", req, headers)
	require.Equal(t, http.StatusCreated, code, string(body))

	token := s.jwt.GenerateToken(t, "alice")
	w := httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, ordersURL, req, token, headers)

	var replay response.OrderResponse
	httptest.AssertSuccessResponse(t, w, http.StatusOK, &replay)
	assert.True(t, replay.Replayed)
	assert.Equal(t, []string{"E-1"}, replay.Seats)
	assert.Equal(t, int64(150000), replay.RemainingBalance)
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "orders"))
	assert.Equal(t, int64(150000), dbtest.Balance(t, s.DB, "alice"))

	other := reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("E-2")}
	w = httptest.PerformRequestWithHeaders(t, s.Router, http.MethodPost, ordersURL, other, token, headers)
	httptest.AssertErrorCode(t, w, http.StatusConflict, "IDEMPOTENCY_KEY_REUSED")
	assert.Equal(t, []string{"E-1"}, s.bookedSeats())
}

func (s *orderSuite) TestPlaceOrder_ExpiredKeyIsNotReplayed() {
	t := s.T()
	headers := map[string]string{api.IdempotencyKeyHeader: uuid.NewString()}

	code, body := s.place("alice", reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("F-1")}, headers)
	require.Equal(t, http.StatusCreated, code, string(body))

	// expired by the database clock, whatever the app clock says
	_, err := s.DB.Exec(t.Context(), "UPDATE idempotency_keys SET expires_at = now() - interval '1 second'")
	require.NoError(t, err)

	code, body = s.place("alice", reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats("F-2")}, headers)
	require.Equal(t, http.StatusCreated, code, string(body))
	assert.Equal(t, 2, dbtest.CountRows(t, s.DB, "orders"))
	assert.Equal(t, []string{"F-1", "F-2"}, s.bookedSeats())
	assert.Equal(t, 1, dbtest.CountRows(t, s.DB, "idempotency_keys"))
}

func (s *orderSuite) TestPlaceOrder_RequiresToken() {
	w := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, ordersURL,
		reqdto.PlaceOrderRequest{Items: []reqdto.ItemInput{{ProductID: s.sodaID, Quantity: 1}}}, "")

	httptest.AssertErrorResponse(s.T(), w, http.StatusUnauthorized, "Access token required")
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []shared.OutboxEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev shared.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, ev)
	return nil
}

func (s *orderSuite) TestOutboxRelay_PublishesCommittedOrders() {
	t := s.T()
	for _, label := range []string{"F-1", "F-2"} {
		code, body := s.place("alice", reqdto.PlaceOrderRequest{ShowingID: &s.showingID, Seats: seats(label)}, nil)
		require.Equal(t, http.StatusCreated, code, string(body))
	}

	pub := &recordingPublisher{}
	relay := worker.NewOutboxRelay(s.UoW, pub, clock.NewRealClock(), nil, nil, s.Config.Broker)

	n, err := relay.RelayOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "order.placed", pub.sent[0].Topic)

	var event commands.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(pub.sent[0].Payload, &event))
	assert.Equal(t, pub.sent[0].EventID, event.EventID)
	assert.Equal(t, "alice", event.UserName)
	assert.Equal(t, []string{"F-1"}, event.Seats)

	var pending int
	err = s.DB.QueryRow(t.Context(), "SELECT count(*) FROM order_events WHERE published_at IS NULL").Scan(&pending)
	require.NoError(t, err)
	assert.Zero(t, pending)

	n, err = relay.RelayOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}
