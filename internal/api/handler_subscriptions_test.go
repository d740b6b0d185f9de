package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/testutil"
)

func TestPutSubscription_InvalidRequest(t *testing.T) {
	r := newTestRouter(&fakeService{})

	w := serve(r, http.MethodPut, "/api/subscriptions", "alice", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request","code":"invalid_argument"}`, w.Body.String())
}

func TestSubscriptions_RoundTrip(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedEquipment(t, db, "tm-1", model.CategoryCardio, model.EquipmentAvailable)
	testutil.SeedEquipment(t, db, "rack-1", model.CategoryStrength, model.EquipmentAvailable)

	h := NewHandler(&fakeService{}, db, nil, nil, nil)
	r := NewRouter(h, RouterOptions{RateLimit: 1000, RateBurst: 1000})

	const endpoint = "https://push.example.com/send/abc123"
	put := `{"endpoint":"` + endpoint + `","p256dh":"key","auth":"secret","subscribed_equipment":["tm-1","rack-1","missing"]}`

	w := serve(r, http.MethodPut, "/api/subscriptions", "alice", put)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tm-1"`)
	assert.Contains(t, w.Body.String(), `"rack-1"`)
	assert.NotContains(t, w.Body.String(), `"missing"`)

	// Another member cannot read it.
	w = serve(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Replacing narrows the watch list.
	put = `{"endpoint":"` + endpoint + `","p256dh":"key2","auth":"secret","subscribed_equipment":["rack-1"]}`
	w = serve(r, http.MethodPut, "/api/subscriptions", "alice", put)
	require.Equal(t, http.StatusCreated, w.Code)
	w = serve(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "alice", "")
	assert.JSONEq(t, `{"subscribed_equipment":["rack-1"]}`, w.Body.String())

	var stored model.PushSubscription
	require.NoError(t, db.First(&stored, "endpoint = ?", endpoint).Error)
	assert.Equal(t, "key2", stored.P256DH)

	w = serve(r, http.MethodDelete, "/api/subscriptions", "alice", `{"endpoint":"`+endpoint+`"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var mappings int64
	require.NoError(t, db.Table("subscription_equipment_mapping").Count(&mappings).Error)
	assert.Zero(t, mappings)
}

func TestGetSubscription_RequiresEndpoint(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := serve(r, http.MethodGet, "/api/subscriptions", "alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
