package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/application"
	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/auction/infra/repository/memory"
	cardomain "github.com/cristianortiz/carauction/internal/car/domain"
	carmemory "github.com/cristianortiz/carauction/internal/car/infra/repository/memory"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"github.com/cristianortiz/carauction/internal/shared/config"
	"github.com/cristianortiz/carauction/internal/shared/lock"
	"github.com/cristianortiz/carauction/internal/shared/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

var noLimit = config.RateLimitConfig{Enabled: false}

type apiFixture struct {
	app   *fiber.App
	clock *clock.Manual
	car   cardomain.Car
}

func newAPI(t *testing.T, rl config.RateLimitConfig) *apiFixture {
	t.Helper()
	repo := memory.NewAuctionRepository()
	car := cardomain.Car{ID: uuid.New(), Make: "Nissan", Model: "Patrol", Year: 2019, Title: "Nissan Patrol 2019"}
	catalog := carmemory.NewCatalog(car)
	clk := clock.NewManual(now)
	mutator := application.NewAuctionMutator(repo, lock.NewKeyedMutex(time.Second), 3)
	svc := application.NewAuctionService(
		application.NewCreateAuctionUseCase(repo, catalog, clk),
		application.NewPlaceBidUseCase(mutator, clk, nil),
		application.NewCloseAuctionUseCase(mutator, nil),
		application.NewCancelAuctionUseCase(mutator, clk, nil),
		application.NewGetAuctionUseCase(repo, catalog),
	)
	return &apiFixture{app: newApp(svc, clk, rl), clock: clk, car: car}
}

func newApp(svc application.AuctionService, clk clock.Clock, rl config.RateLimitConfig) *fiber.App {
	app := fiber.New()
	NewAuctionHandler(svc, clk, ratelimit.New(rl)).RegisterRoutes(app)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (f *apiFixture) create(t *testing.T, reserve string) string {
	t.Helper()
	body := fmt.Sprintf(`{"car_id":%q,"starting_price":"1000","min_increment":"50","end_time":%q`,
		f.car.ID, now.Add(time.Hour).Format(time.RFC3339))
	if reserve != "" {
		body += fmt.Sprintf(`,"reserve_price":%q`, reserve)
	}
	body += "}"
	resp, out := do(t, f.app, "POST", "/api/auctions", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)
	return out["id"].(string)
}

func bidBody(name, phone, amount string) string {
	return fmt.Sprintf(`{"bidder_name":%q,"phone_number":%q,"amount":%q}`, name, phone, amount)
}

func TestCreateAndGetAuction(t *testing.T) {
	f := newAPI(t, noLimit)
	id := f.create(t, "1500")

	resp, out := do(t, f.app, "GET", "/api/auctions/"+id, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ACTIVE", out["status"])
	assert.Equal(t, "1000", out["current_price"])
	assert.Equal(t, "1050", out["minimum_bid"])
	assert.Equal(t, true, out["has_reserve"])
	assert.NotContains(t, out, "reserve_price")
	assert.Equal(t, "Nissan Patrol 2019", out["car"].(map[string]any)["title"])

	resp, out = do(t, f.app, "GET", "/api/auctions", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, out)
}

func TestCreateAuctionValidation(t *testing.T) {
	f := newAPI(t, noLimit)
	end := now.Add(time.Hour).Format(time.RFC3339)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed", `{`, "body"},
		{"bad car id", fmt.Sprintf(`{"car_id":"x","starting_price":"1","min_increment":"1","end_time":%q}`, end), "car_id"},
		{"bad price", fmt.Sprintf(`{"car_id":%q,"starting_price":"abc","min_increment":"1","end_time":%q}`, f.car.ID, end), "starting_price"},
		{"unknown car", fmt.Sprintf(`{"car_id":%q,"starting_price":"1000","min_increment":"50","end_time":%q}`, uuid.New(), end), "car_id"},
		{"starting price below a cent", fmt.Sprintf(`{"car_id":%q,"starting_price":"1000.004","min_increment":"50","end_time":%q}`, f.car.ID, end), "starting_price"},
		{"sub-cent increment", fmt.Sprintf(`{"car_id":%q,"starting_price":"1000","min_increment":"0.001","end_time":%q}`, f.car.ID, end), "min_increment"},
		{"reserve below start", fmt.Sprintf(`{"car_id":%q,"starting_price":"1000","min_increment":"50","reserve_price":"10","end_time":%q}`, f.car.ID, end), "reserve_price"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, out := do(t, f.app, "POST", "/api/auctions", tc.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, application.CodeValidation, out["code"])
			assert.Equal(t, tc.field, out["field"])
		})
	}
}

func TestPlaceBidFlow(t *testing.T) {
	f := newAPI(t, noLimit)
	id := f.create(t, "5000")
	bids := "/api/auctions/" + id + "/bids"

	resp, out := do(t, f.app, "POST", bids, bidBody("Ali", "777000111", "1000"))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, application.CodeBidTooLow, out["code"])
	assert.Equal(t, "1050", out["minimum_required"])

	resp, out = do(t, f.app, "POST", bids, bidBody("Ali", "777000111", "4000"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)
	assert.Equal(t, "777***111", out["bid"].(map[string]any)["masked_phone"])
	assert.Equal(t, "4000", out["auction"].(map[string]any)["current_price"])

	resp, out = do(t, f.app, "POST", bids, bidBody("Omar", "12", "5000"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, application.CodeInvalidPhone, out["code"])

	resp, out = do(t, f.app, "POST", bids, bidBody("", "777123456", "5000"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, application.CodeMissingBidderName, out["code"])

	resp, _ = do(t, f.app, "POST", bids, bidBody("Omar", "777123456", "five"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, out = do(t, f.app, "POST", bids, bidBody("Omar", "777123456", "5000.005"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, application.CodeValidation, out["code"])
	assert.Equal(t, "amount", out["field"])

	resp, out = do(t, f.app, "POST", bids, bidBody("Omar", "777123456", "5200"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)

	resp, out = do(t, f.app, "POST", "/api/auctions/"+id+"/close", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "SOLD", out["status"])
	assert.Equal(t, "777***456", out["winner_phone"])

	resp, out = do(t, f.app, "POST", bids, bidBody("Late", "777123456", "9000"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, application.CodeNotActive, out["code"])

	resp, out = do(t, f.app, "POST", "/api/auctions/"+id+"/close", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, application.CodeAlreadyClosed, out["code"])
	state := out["auction"].(map[string]any)
	assert.Equal(t, "SOLD", state["status"])
	assert.Equal(t, "5200", state["current_price"])
	assert.Equal(t, "777***456", state["winner_phone"])

	resp, out = do(t, f.app, "POST", "/api/auctions/"+id+"/cancel", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, application.CodeInvalidTransition, out["code"])
}

func TestExpiredAndMissingAuction(t *testing.T) {
	f := newAPI(t, noLimit)
	id := f.create(t, "")

	f.clock.Advance(time.Hour)
	resp, out := do(t, f.app, "POST", "/api/auctions/"+id+"/bids", bidBody("Ali", "777123456", "1050"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, application.CodeExpired, out["code"])

	resp, out = do(t, f.app, "GET", "/api/auctions/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, application.CodeNotFound, out["code"])

	resp, _ = do(t, f.app, "GET", "/api/auctions/not-a-uuid", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCancelAuction(t *testing.T) {
	f := newAPI(t, noLimit)
	id := f.create(t, "")

	resp, out := do(t, f.app, "POST", "/api/auctions/"+id+"/cancel", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "CANCELLED", out["status"])
}

type busyService struct {
	application.AuctionService
}

func (busyService) PlaceBid(context.Context, uuid.UUID, domain.BidInput) (*domain.Auction, error) {
	return nil, fmt.Errorf("place bid use case: %w", lock.ErrLockTimeout)
}

func TestRetryableErrorsAre503(t *testing.T) {
	app := newApp(busyService{}, clock.System{}, noLimit)
	resp, out := do(t, app, "POST", "/api/auctions/"+uuid.NewString()+"/bids", bidBody("Ali", "777123456", "1050"))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, application.CodeConflict, out["code"])
}

func TestBidRateLimit(t *testing.T) {
	f := newAPI(t, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2})
	id := f.create(t, "")
	bids := "/api/auctions/" + id + "/bids"

	resp, _ := do(t, f.app, "POST", bids, bidBody("Ali", "777123456", "1050"))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = do(t, f.app, "POST", bids, bidBody("Ali", "777123456", "1100"))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, out := do(t, f.app, "POST", bids, bidBody("Ali", "777123456", "1150"))
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, application.CodeRateLimited, out["code"])

	// reads are not limited
	resp, _ = do(t, f.app, "GET", "/api/auctions/"+id, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
