package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"waterbilling-service/internal/model"
	"waterbilling-service/pkg/config"
	"waterbilling-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	prometheus.InitMetrics(cfg)
	os.Exit(m.Run())
}

func newTestHandler(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// In-memory sqlite is per-connection, keep the pool at one
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.WaterUsageLog{}))
	return New(db), db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedTenant(t *testing.T, db *gorm.DB, name, status string) {
	t.Helper()

	tenant := &model.Tenant{
		Name:               name,
		Status:             status,
		House:              "A-1",
		Rent:               dec("5000"),
		WaterRatePerLitre:  dec("10"),
		InitialHotReading:  dec("100"),
		InitialColdReading: dec("50"),
	}
	require.NoError(t, db.Create(tenant).Error)
}

func doRequest(h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	e := echo.New()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}

	_ = h(c)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateUsageEntry(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	body := `{"name":"Alice","date":"2026-08-15","hot_reading":150,"cold_reading":80}`
	rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var entry model.WaterUsageLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "Alice", entry.Name)
	assert.Equal(t, "Aug-26", entry.Month)
	assert.True(t, entry.HotUsage.Equal(dec("50")), "hot usage: %s", entry.HotUsage)
	assert.True(t, entry.ColdUsage.Equal(dec("30")), "cold usage: %s", entry.ColdUsage)
	assert.True(t, entry.WaterCost.Equal(dec("800")), "water cost: %s", entry.WaterCost)
	assert.True(t, entry.Rent.Equal(dec("5000")), "rent: %s", entry.Rent)
	assert.True(t, entry.TotalAmount.Equal(dec("5800")), "total amount: %s", entry.TotalAmount)
	assert.Equal(t, "A-1", entry.House)

	var count int64
	require.NoError(t, db.Model(&model.WaterUsageLog{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateUsageEntry_DuplicateMonth(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	body := `{"name":"Alice","date":"2026-08-15","hot_reading":150,"cold_reading":80}`
	rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same tenant and month again, different day and readings
	body = `{"name":"Alice","date":"2026-08-20","hot_reading":160,"cold_reading":90}`
	rec = doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var count int64
	require.NoError(t, db.Model(&model.WaterUsageLog{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "conflict must not add a row")
}

func TestCreateUsageEntry_ReadingBelowBaseline(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	body := `{"name":"Alice","date":"2026-08-15","hot_reading":90,"cold_reading":80}`
	rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var count int64
	require.NoError(t, db.Model(&model.WaterUsageLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateUsageEntry_TenantNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"name":"Nobody","date":"2026-08-15","hot_reading":150,"cold_reading":80}`
	rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUsageEntry_InvalidDate(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	body := `{"name":"Alice","date":"15/08/2026","hot_reading":150,"cold_reading":80}`
	rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUsageEntry_SecondMonthUsesLoggedBaseline(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	body := `{"name":"Alice","date":"2026-07-15","hot_reading":150,"cold_reading":80}`
	rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// August usage is measured from July's readings, not the initials
	body = `{"name":"Alice","date":"2026-08-15","hot_reading":175,"cold_reading":95}`
	rec = doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var entry model.WaterUsageLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.True(t, entry.HotUsage.Equal(dec("25")), "hot usage: %s", entry.HotUsage)
	assert.True(t, entry.ColdUsage.Equal(dec("15")), "cold usage: %s", entry.ColdUsage)
	assert.True(t, entry.WaterCost.Equal(dec("400")), "water cost: %s", entry.WaterCost)
	assert.True(t, entry.TotalAmount.Equal(dec("5400")), "total amount: %s", entry.TotalAmount)
}

func TestPreviewUsage(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	body := `{"name":"Alice","date":"2026-08-15","hot_reading":150,"cold_reading":80}`
	rec := doRequest(h.PreviewUsage, http.MethodPost, "/api/usage/preview", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeMap(t, rec)
	assert.Equal(t, "Alice", resp["name"])
	assert.Equal(t, "Aug-26", resp["month"])
	assert.Equal(t, "80", resp["total_usage"])
	assert.Equal(t, "800.00", resp["water_cost"])
	assert.Equal(t, "5000.00", resp["rent"])
	assert.Equal(t, "5800.00", resp["total_amount"])

	baseline, ok := resp["baseline"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "initial", baseline["source"])
	assert.Equal(t, "100", baseline["hot_reading"])
	assert.Equal(t, "50", baseline["cold_reading"])

	// Preview never persists
	var count int64
	require.NoError(t, db.Model(&model.WaterUsageLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetBaseline(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	rec := doRequest(h.GetBaseline, http.MethodGet, "/api/tenants/Alice/baseline", "", "name", "Alice")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeMap(t, rec)
	assert.Equal(t, "initial", resp["source"])
	assert.Equal(t, "100", resp["hot_reading"])
	assert.Equal(t, "50", resp["cold_reading"])

	// After an entry is logged the baseline comes from the log
	body := `{"name":"Alice","date":"2026-08-15","hot_reading":150,"cold_reading":80}`
	created := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", body)
	require.Equal(t, http.StatusCreated, created.Code)

	rec = doRequest(h.GetBaseline, http.MethodGet, "/api/tenants/Alice/baseline", "", "name", "Alice")
	require.Equal(t, http.StatusOK, rec.Code)

	resp = decodeMap(t, rec)
	assert.Equal(t, "log", resp["source"])
	assert.Equal(t, "150", resp["hot_reading"])
	assert.Equal(t, "80", resp["cold_reading"])
}

func TestGetBaseline_TenantNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h.GetBaseline, http.MethodGet, "/api/tenants/Nobody/baseline", "", "name", "Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTenants_ActiveOnly(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Carol", model.StatusActive)
	seedTenant(t, db, "Alice", model.StatusActive)
	seedTenant(t, db, "Bob", model.StatusInactive)

	rec := doRequest(h.ListTenants, http.MethodGet, "/api/tenants", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeMap(t, rec)
	assert.EqualValues(t, 2, resp["count"])
	assert.Equal(t, []interface{}{"Alice", "Carol"}, resp["tenants"])
}

func TestGetTenant(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	rec := doRequest(h.GetTenant, http.MethodGet, "/api/tenants/Alice", "", "name", "Alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var tenant model.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, "Alice", tenant.Name)
	assert.True(t, tenant.Rent.Equal(dec("5000")))
	assert.True(t, tenant.WaterRatePerLitre.Equal(dec("10")))

	rec = doRequest(h.GetTenant, http.MethodGet, "/api/tenants/Nobody", "", "name", "Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTenantUsage_NewestFirst(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)

	for _, req := range []string{
		`{"name":"Alice","date":"2026-06-15","hot_reading":120,"cold_reading":60}`,
		`{"name":"Alice","date":"2026-07-15","hot_reading":140,"cold_reading":70}`,
		`{"name":"Alice","date":"2026-08-15","hot_reading":150,"cold_reading":80}`,
	} {
		rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(h.ListTenantUsage, http.MethodGet, "/api/tenants/Alice/usage", "", "name", "Alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []model.WaterUsageLog `json:"entries"`
		Count   int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "Aug-26", resp.Entries[0].Month)
	assert.Equal(t, "Jul-26", resp.Entries[1].Month)
	assert.Equal(t, "Jun-26", resp.Entries[2].Month)
}

func TestListUsage_Chronological(t *testing.T) {
	h, db := newTestHandler(t)
	seedTenant(t, db, "Alice", model.StatusActive)
	seedTenant(t, db, "Bob", model.StatusActive)

	for _, req := range []string{
		`{"name":"Alice","date":"2026-08-15","hot_reading":150,"cold_reading":80}`,
		`{"name":"Bob","date":"2026-07-15","hot_reading":110,"cold_reading":55}`,
	} {
		rec := doRequest(h.CreateUsageEntry, http.MethodPost, "/api/usage", req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(h.ListUsage, http.MethodGet, "/api/usage", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []model.WaterUsageLog `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "Jul-26", resp.Entries[0].Month)
	assert.Equal(t, "Aug-26", resp.Entries[1].Month)
}
