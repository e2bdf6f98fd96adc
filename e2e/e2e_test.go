//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"gym-batches-go/internal/config"
	"gym-batches-go/internal/db"
	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
	"gym-batches-go/internal/metrics"
	enrollmentrepo "gym-batches-go/internal/repository/enrollment"
	"gym-batches-go/internal/transport/httpserver"
	"gym-batches-go/internal/transport/httpserver/handler"
	"gym-batches-go/pkg/logger"
)

type testEnv struct {
	server *httptest.Server
	db     *gorm.DB
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	ctx := context.Background()
	log := logger.Discard()
	cfg := config.Config{
		DB:             config.DBConfig{DSN: dsn, MaxOpenConns: 20},
		RequestTimeout: 10 * time.Second,
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DB, log)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}

	if _, err := db.Migrate(ctx, dbConn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := cleanDB(dbConn); err != nil {
		t.Fatalf("clean db: %v", err)
	}

	service := enrollmentdomain.NewService(enrollmentrepo.NewPostgres(dbConn))
	m := metrics.New()
	router := httpserver.NewRouter(cfg, handler.New(service, log, m), m)
	server := httptest.NewServer(router)

	return &testEnv{server: server, db: dbConn}
}

func (e *testEnv) Close() {
	e.server.Close()
	sqlDB, err := e.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("TRUNCATE TABLE payments, enrollments, members RESTART IDENTITY CASCADE").Error; err != nil {
			return err
		}
		return tx.Exec("UPDATE batches SET current_capacity = 0, max_capacity = 30, monthly_fee = 1000.00").Error
	})
}

func requestJSON(t *testing.T, client *http.Client, method, url string, payload interface{}) (*http.Response, []byte) {
	t.Helper()

	resp, body, err := doJSON(client, method, url, payload)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp, body
}

// doJSON is safe to call from goroutines other than the test's own.
func doJSON(client *http.Client, method, url string, payload interface{}) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	return resp, respBody, nil
}

type errorResponse struct {
	Error          string   `json:"error"`
	Code           string   `json:"code"`
	Required       []string `json:"required"`
	RequiredAmount *float64 `json:"required_amount"`
}

type enrollResponse struct {
	Message       string `json:"message"`
	MemberID      int64  `json:"memberId"`
	EnrollmentID  int64  `json:"enrollmentId"`
	BatchTime     string `json:"batch_time"`
	TransactionID string `json:"transaction_id"`
}

type batchResponse struct {
	BatchTime       string  `json:"batch_time"`
	CurrentCapacity int     `json:"current_capacity"`
	MaxCapacity     int     `json:"max_capacity"`
	MonthlyFee      float64 `json:"monthly_fee"`
}

func enrollPayload(name, email, batchTime string, amount float64, status string) map[string]interface{} {
	payload := map[string]interface{}{
		"name":           name,
		"email":          email,
		"phone":          "111",
		"batch_time":     batchTime,
		"payment_amount": amount,
	}
	if status != "" {
		payload["payment_status"] = status
	}
	return payload
}

func batchCapacity(t *testing.T, dbConn *gorm.DB, batchTime string) int {
	t.Helper()
	var capacity int
	if err := dbConn.Raw("SELECT current_capacity FROM batches WHERE batch_time = ?", batchTime).Scan(&capacity).Error; err != nil {
		t.Fatalf("read capacity: %v", err)
	}
	return capacity
}

func countRows(t *testing.T, dbConn *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Raw("SELECT COUNT(1) FROM " + table).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func TestEnrollmentFlow(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := env.server.Client()
	baseURL := env.server.URL + "/api/enrollment"

	resp, body := requestJSON(t, client, http.MethodGet, baseURL+"/available-batches", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("available batches: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var batches []batchResponse
	if err := json.Unmarshal(body, &batches); err != nil {
		t.Fatalf("decode batches: %v", err)
	}
	if len(batches) != 5 || batches[0].BatchTime != "06:00:00" || batches[0].MonthlyFee != 1000 {
		t.Fatalf("unexpected seeded batches: %+v", batches)
	}

	resp, body = requestJSON(t, client, http.MethodPost, baseURL+"/enroll", enrollPayload("A", "a@x.com", "06:00:00", 500, "paid"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("underpaid enroll: expected 400, got %d: %s", resp.StatusCode, body)
	}
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Error != "Insufficient payment amount" || errResp.RequiredAmount == nil || *errResp.RequiredAmount != 1000 {
		t.Fatalf("unexpected error body: %s", body)
	}
	if countRows(t, env.db, "members") != 0 {
		t.Fatalf("expected no member after rejected enroll")
	}

	resp, body = requestJSON(t, client, http.MethodPost, baseURL+"/enroll", enrollPayload("A", "a@x.com", "06:00:00", 1000, "paid"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enroll: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var enrolled enrollResponse
	if err := json.Unmarshal(body, &enrolled); err != nil {
		t.Fatalf("decode enroll: %v", err)
	}
	if enrolled.MemberID == 0 || enrolled.EnrollmentID == 0 || enrolled.TransactionID == "" {
		t.Fatalf("unexpected enroll body: %s", body)
	}
	if got := batchCapacity(t, env.db, "06:00:00"); got != 1 {
		t.Fatalf("expected capacity 1, got %d", got)
	}
	if countRows(t, env.db, "payments") != 1 {
		t.Fatalf("expected one payment")
	}

	resp, body = requestJSON(t, client, http.MethodPost, baseURL+"/enroll", enrollPayload("Other", "A@X.COM", "07:00:00", 1000, ""))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate email: expected 400, got %d: %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodPost, baseURL+"/change-batch", map[string]string{
		"email":          "a@x.com",
		"name":           "A",
		"new_batch_time": "17:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change batch: expected 200, got %d: %s", resp.StatusCode, body)
	}
	if got := batchCapacity(t, env.db, "06:00:00"); got != 0 {
		t.Fatalf("expected source capacity 0, got %d", got)
	}
	if got := batchCapacity(t, env.db, "17:00:00"); got != 1 {
		t.Fatalf("expected target capacity 1, got %d", got)
	}

	resp, body = requestJSON(t, client, http.MethodGet, fmt.Sprintf("%s/member/%d/current-batch", baseURL, enrolled.MemberID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current batch: expected 200, got %d: %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, baseURL+"/outstanding-dues", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("outstanding dues: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var dues []struct {
		Email         string  `json:"email"`
		PendingMonths int64   `json:"pending_months"`
		TotalDues     float64 `json:"total_dues"`
	}
	if err := json.Unmarshal(body, &dues); err != nil {
		t.Fatalf("decode dues: %v", err)
	}
	if len(dues) != 1 || dues[0].PendingMonths != 1 || dues[0].TotalDues != 1000 {
		t.Fatalf("unexpected dues: %s", body)
	}
}

func TestConcurrentEnrollmentNeverOverfills(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	const seats = 5
	const attempts = 15

	if err := env.db.Exec("UPDATE batches SET max_capacity = ? WHERE batch_time = ?", seats, "08:00:00").Error; err != nil {
		t.Fatalf("shrink batch: %v", err)
	}

	client := env.server.Client()
	url := env.server.URL + "/api/enrollment/enroll"

	var created, rejected int64
	var group errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		group.Go(func() error {
			payload := enrollPayload("Racer", fmt.Sprintf("racer%d@x.com", i), "08:00:00", 1000, "paid")
			resp, body, err := doJSON(client, http.MethodPost, url, payload)
			if err != nil {
				return err
			}
			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&created, 1)
			case http.StatusBadRequest:
				atomic.AddInt64(&rejected, 1)
			default:
				return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent enroll: %v", err)
	}

	if created != seats || rejected != attempts-seats {
		t.Fatalf("expected %d created and %d rejected, got %d and %d", seats, attempts-seats, created, rejected)
	}
	if got := batchCapacity(t, env.db, "08:00:00"); got != seats {
		t.Fatalf("expected capacity %d, got %d", seats, got)
	}
}

// assertSeatsMatchEnrollments checks every batch against the members whose
// latest enrollment points at it.
func assertSeatsMatchEnrollments(t *testing.T, dbConn *gorm.DB) {
	t.Helper()

	var rows []struct {
		BatchTime       string
		CurrentCapacity int
		MaxCapacity     int
		Holders         int
	}
	err := dbConn.Raw(`
		SELECT b.batch_time, b.current_capacity, b.max_capacity, COUNT(latest.member_id) AS holders
		FROM batches b
		LEFT JOIN (
			SELECT DISTINCT ON (member_id) member_id, batch_time
			FROM enrollments
			ORDER BY member_id, month DESC
		) latest ON latest.batch_time = b.batch_time
		GROUP BY b.batch_time, b.current_capacity, b.max_capacity
		ORDER BY b.batch_time`).Scan(&rows).Error
	if err != nil {
		t.Fatalf("read seat totals: %v", err)
	}

	for _, row := range rows {
		if row.CurrentCapacity != row.Holders {
			t.Fatalf("batch %s holds %d seats, enrollments account for %d", row.BatchTime, row.CurrentCapacity, row.Holders)
		}
		if row.CurrentCapacity > row.MaxCapacity {
			t.Fatalf("batch %s over capacity: %d > %d", row.BatchTime, row.CurrentCapacity, row.MaxCapacity)
		}
	}
}

func TestConcurrentChangeBatchKeepsSeatTotals(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := env.server.Client()
	baseURL := env.server.URL + "/api/enrollment"

	for _, payload := range []map[string]interface{}{
		enrollPayload("A", "a@x.com", "06:00:00", 1000, "paid"),
		enrollPayload("B", "b@x.com", "07:00:00", 1000, "paid"),
	} {
		resp, body := requestJSON(t, client, http.MethodPost, baseURL+"/enroll", payload)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("enroll: expected 201, got %d: %s", resp.StatusCode, body)
		}
	}

	resp, body := requestJSON(t, client, http.MethodPost, baseURL+"/change-batch", map[string]string{
		"email":          "a@x.com",
		"name":           "A",
		"new_batch_time": "07:00:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change batch: expected 200, got %d: %s", resp.StatusCode, body)
	}

	var changed int64
	var group errgroup.Group
	for _, target := range []string{"08:00:00", "17:00:00", "18:00:00", "08:00:00", "17:00:00", "18:00:00"} {
		target := target
		group.Go(func() error {
			resp, body, err := doJSON(client, http.MethodPost, baseURL+"/change-batch", map[string]string{
				"email":          "a@x.com",
				"name":           "A",
				"new_batch_time": target,
			})
			if err != nil {
				return err
			}
			switch resp.StatusCode {
			case http.StatusOK:
				atomic.AddInt64(&changed, 1)
			case http.StatusBadRequest:
				// Same batch as the move that committed just before.
			default:
				return fmt.Errorf("change to %s: unexpected status %d: %s", target, resp.StatusCode, body)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent change batch: %v", err)
	}

	if changed == 0 {
		t.Fatalf("expected at least one change to succeed")
	}
	if got := batchCapacity(t, env.db, "07:00:00"); got != 1 {
		t.Fatalf("expected 07:00:00 to keep member B only, got %d", got)
	}

	var total int
	if err := env.db.Raw("SELECT COALESCE(SUM(current_capacity), 0) FROM batches").Scan(&total).Error; err != nil {
		t.Fatalf("sum capacity: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 seats held by 2 members, got %d", total)
	}
	assertSeatsMatchEnrollments(t, env.db)
}
