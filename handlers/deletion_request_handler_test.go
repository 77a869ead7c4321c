package handlers

import (
	"context"
	"net/http"
	"testing"

	"roofcrm-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDeletionRequest(t *testing.T, env *testEnv, token string, leadID uuid.UUID, reason string) string {
	t.Helper()
	rec := env.doJSON(t, http.MethodPost, "/api/deletion-requests", token, map[string]string{
		"leadId": leadID.String(),
		"reason": reason,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	return data["request"].(map[string]any)["id"].(string)
}

func TestApproveDeletesLeadAndNotifiesEveryAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "Alex Admin", "alex@roofco.test", models.RoleAdmin)
	env.addUser(t, "Blair Admin", "blair@roofco.test", models.RoleAdmin)
	env.addUser(t, "Casey Admin", "not-an-address", models.RoleAdmin)
	_, repToken := env.addUser(t, "Sam Sales", "sam@roofco.test", models.RoleSalesRep)
	lead := env.addLead(t, "L3 Homeowner")

	requestID := createDeletionRequest(t, env, repToken, lead.ID, "duplicate")

	rec := env.doJSON(t, http.MethodPost, "/api/deletion-requests/"+requestID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	notifications := data["notifications"].([]any)
	assert.Len(t, notifications, 3)
	assert.Equal(t, float64(1), data["notificationsFailed"])
	assert.Equal(t, 2, env.mail.count(models.EventDeletionApproved))

	rec = env.doJSON(t, http.MethodGet, "/api/leads/"+lead.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stored, err := env.store.DeletionRequests.GetByID(context.Background(), uuid.MustParse(requestID))
	require.NoError(t, err)
	assert.Equal(t, models.DeletionApproved, stored.Status)
	assert.Nil(t, stored.LeadID)
	assert.Equal(t, "L3 Homeowner", stored.LeadName)
}

func TestRejectKeepsLead(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "Alex Admin", "alex@roofco.test", models.RoleAdmin)
	_, repToken := env.addUser(t, "Sam Sales", "sam@roofco.test", models.RoleSalesRep)
	lead := env.addLead(t, "L2 Homeowner")

	requestID := createDeletionRequest(t, env, repToken, lead.ID, "duplicate")

	rec := env.doJSON(t, http.MethodPost, "/api/deletion-requests/"+requestID+"/reject", adminToken,
		map[string]string{"rejectionReason": "not a duplicate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.store.DeletionRequests.GetByID(context.Background(), uuid.MustParse(requestID))
	require.NoError(t, err)
	assert.Equal(t, models.DeletionRejected, stored.Status)

	rec = env.doJSON(t, http.MethodGet, "/api/leads/"+lead.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.mail.count(models.EventDeletionRejected))
}

func TestApproveStatusCodes(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "Alex Admin", "alex@roofco.test", models.RoleAdmin)
	_, repToken := env.addUser(t, "Sam Sales", "sam@roofco.test", models.RoleSalesRep)
	lead := env.addLead(t, "Pat Homeowner")
	requestID := createDeletionRequest(t, env, repToken, lead.ID, "")
	approvePath := "/api/deletion-requests/" + requestID + "/approve"

	rec := env.doJSON(t, http.MethodPost, approvePath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPost, approvePath, repToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	stored, err := env.store.DeletionRequests.GetByID(context.Background(), uuid.MustParse(requestID))
	require.NoError(t, err)
	assert.Equal(t, models.DeletionPending, stored.Status)

	rec = env.doJSON(t, http.MethodPost, "/api/deletion-requests/"+uuid.NewString()+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/deletion-requests/not-a-uuid/approve", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, approvePath, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doJSON(t, http.MethodPost, approvePath, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ALREADY_RESOLVED", errorCode(t, rec))
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "Alex Admin", "alex@roofco.test", models.RoleAdmin)
	_, repToken := env.addUser(t, "Sam Sales", "sam@roofco.test", models.RoleSalesRep)
	lead := env.addLead(t, "Pat Homeowner")
	requestID := createDeletionRequest(t, env, repToken, lead.ID, "")
	rejectPath := "/api/deletion-requests/" + requestID + "/reject"

	rec := env.doJSON(t, http.MethodPost, rejectPath, adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, rejectPath, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, rejectPath, repToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := env.store.DeletionRequests.GetByID(context.Background(), uuid.MustParse(requestID))
	require.NoError(t, err)
	assert.Equal(t, models.DeletionPending, stored.Status)
}

func TestCreateDeletionRequestNotifiesAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "Alex Admin", "alex@roofco.test", models.RoleAdmin)
	env.addUser(t, "Blair Admin", "blair@roofco.test", models.RoleAdmin)
	_, repToken := env.addUser(t, "Sam Sales", "sam@roofco.test", models.RoleSalesRep)
	lead := env.addLead(t, "Pat Homeowner")

	createDeletionRequest(t, env, repToken, lead.ID, "duplicate")
	assert.Equal(t, 2, env.mail.count(models.EventDeletionRequested))

	rec := env.doJSON(t, http.MethodPost, "/api/deletion-requests", repToken, map[string]string{"leadId": lead.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/deletion-requests", repToken, map[string]string{"leadId": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/deletion-requests", repToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPendingIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "Alex Admin", "alex@roofco.test", models.RoleAdmin)
	_, repToken := env.addUser(t, "Sam Sales", "sam@roofco.test", models.RoleSalesRep)
	first := env.addLead(t, "First")
	second := env.addLead(t, "Second")
	createDeletionRequest(t, env, repToken, first.ID, "")
	newest := createDeletionRequest(t, env, repToken, second.ID, "")

	rec := env.doJSON(t, http.MethodGet, "/api/deletion-requests", repToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.doJSON(t, http.MethodGet, "/api/deletion-requests", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, newest, data[0].(map[string]any)["id"])
}
