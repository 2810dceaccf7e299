package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mem "pet-custody/internal/adapters/storage/memory"
	"pet-custody/internal/router"
)

const (
	ownerID  = "owner-1"
	helperID = "helper-1"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := mem.NewStore()
	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: nil, // modo dev: X-Debug-User-ID
		Store:        store,
		Pets:         store.Pets(),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_FosterAndReturn(t *testing.T) {
	ts := newServer(t)

	// 1) Owner registra mascota y pide foster
	petID := createPet(t, ts.URL, ownerID)
	placementID := createPlacement(t, ts.URL, petID, "foster_free")

	// 2) Helper ofrece, owner acepta
	transferID := offer(t, ts.URL, helperID, placementID)
	expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/accept", ownerID, nil, http.StatusOK)

	// 3) Entrega: owner inicia, helper confirma, se completa
	handoverID := idOf(t, expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/handover", ownerID,
		map[string]any{"location": "vet clinic"}, http.StatusCreated))
	expectStatus(t, ts.URL, "POST", "/handovers/"+handoverID+"/confirm", helperID,
		map[string]any{"condition_confirmed": true}, http.StatusOK)
	expectStatus(t, ts.URL, "POST", "/handovers/"+handoverID+"/complete", ownerID, nil, http.StatusOK)

	// 4) El pedido quedó fulfilled y hay una asignación activa
	var placement map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/placement-requests/"+placementID, ownerID, nil, http.StatusOK), &placement)
	if placement["status"] != "fulfilled" {
		t.Fatalf("expected fulfilled placement, got %v", placement["status"])
	}

	var assignments []map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/me/foster-assignments?status=active", helperID, nil, http.StatusOK), &assignments)
	if len(assignments) != 1 {
		t.Fatalf("expected 1 active assignment, got %d", len(assignments))
	}
	assignmentID := assignments[0]["id"].(string)

	// 5) La mascota sigue siendo del owner
	var pet map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/pets/"+petID, ownerID, nil, http.StatusOK), &pet)
	if pet["owner_user_id"] != ownerID {
		t.Fatalf("foster must not change owner, got %v", pet["owner_user_id"])
	}

	// 6) Devolución: el owner no puede iniciarla
	expectStatus(t, ts.URL, "POST", "/foster-assignments/"+assignmentID+"/return-handovers", ownerID, nil, http.StatusForbidden)
	returnID := idOf(t, expectStatus(t, ts.URL, "POST", "/foster-assignments/"+assignmentID+"/return-handovers", helperID, nil, http.StatusCreated))

	base := "/foster-assignments/" + assignmentID + "/return-handovers/" + returnID
	expectStatus(t, ts.URL, "POST", base+"/confirm", ownerID, map[string]any{"condition_confirmed": true}, http.StatusOK)
	expectStatus(t, ts.URL, "POST", base+"/complete", ownerID, nil, http.StatusOK)

	var assignment map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/foster-assignments/"+assignmentID, ownerID, nil, http.StatusOK), &assignment)
	if assignment["status"] != "completed" {
		t.Fatalf("expected completed assignment, got %v", assignment["status"])
	}

	// 7) Timeline con los eventos de custodia
	var events []map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/pets/"+petID+"/custody-events", ownerID, nil, http.StatusOK), &events)
	if len(events) == 0 || events[0]["type"] != "return_handover.completed" {
		t.Fatalf("expected newest event return_handover.completed, got %v", events)
	}
}

func TestHTTP_DisputedHandover(t *testing.T) {
	ts := newServer(t)

	petID := createPet(t, ts.URL, ownerID)
	placementID := createPlacement(t, ts.URL, petID, "foster_paid")
	transferID := offer(t, ts.URL, helperID, placementID)
	expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/accept", ownerID, nil, http.StatusOK)

	h1 := idOf(t, expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/handover", ownerID, nil, http.StatusCreated))
	expectStatus(t, ts.URL, "POST", "/handovers/"+h1+"/confirm", helperID,
		map[string]any{"condition_confirmed": false, "condition_notes": "injured paw"}, http.StatusOK)

	expectStatus(t, ts.URL, "POST", "/handovers/"+h1+"/complete", ownerID, nil, http.StatusConflict)
	expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/handover", ownerID, nil, http.StatusConflict)

	expectStatus(t, ts.URL, "POST", "/handovers/"+h1+"/cancel", ownerID, nil, http.StatusOK)
	h2 := idOf(t, expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/handover", ownerID, nil, http.StatusCreated))
	expectStatus(t, ts.URL, "POST", "/handovers/"+h2+"/complete", helperID, nil, http.StatusOK)
	expectStatus(t, ts.URL, "POST", "/handovers/"+h2+"/complete", helperID, nil, http.StatusConflict)
}

func TestHTTP_PermanentTransferAndRoleReversal(t *testing.T) {
	ts := newServer(t)

	petID := createPet(t, ts.URL, ownerID)
	placementID := createPlacement(t, ts.URL, petID, "permanent")
	transferID := offer(t, ts.URL, helperID, placementID)
	expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/accept", ownerID, nil, http.StatusOK)
	handoverID := idOf(t, expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/handover", ownerID, nil, http.StatusCreated))
	expectStatus(t, ts.URL, "POST", "/handovers/"+handoverID+"/complete", ownerID, nil, http.StatusOK)

	var periods []map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/pets/"+petID+"/ownership", ownerID, nil, http.StatusOK), &periods)
	if len(periods) != 2 || periods[0]["to"] == nil || periods[1]["user_id"] != helperID {
		t.Fatalf("unexpected ownership history: %v", periods)
	}

	// El nuevo dueño publica, el anterior ya no puede
	expectStatus(t, ts.URL, "POST", "/pets/"+petID+"/placement-requests", ownerID,
		map[string]any{"request_type": "foster_free"}, http.StatusForbidden)
	newPlacement := idOf(t, expectStatus(t, ts.URL, "POST", "/pets/"+petID+"/placement-requests", helperID,
		map[string]any{"request_type": "foster_free"}, http.StatusCreated))

	// y el dueño anterior (con rol helper) puede ofrecerse
	req := reqWithRoles(t, ts.URL, "POST", "/placement-requests/"+newPlacement+"/transfer-requests", ownerID, "helper", nil)
	st, body := send(t, req)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 offer from previous owner, got %d body=%s", st, string(body))
	}

	var prev []map[string]any
	decode(t, expectStatus(t, ts.URL, "GET", "/me/ownership-history", ownerID, nil, http.StatusOK), &prev)
	if len(prev) != 1 {
		t.Fatalf("expected 1 previously owned pet, got %d", len(prev))
	}
}

func TestHTTP_ConcurrentAccept(t *testing.T) {
	ts := newServer(t)

	petID := createPet(t, ts.URL, ownerID)
	placementID := createPlacement(t, ts.URL, petID, "permanent")
	a := offer(t, ts.URL, "helper-a", placementID)
	b := offer(t, ts.URL, "helper-b", placementID)

	var wg sync.WaitGroup
	statuses := make([]int, 2)
	for i, id := range []string{a, b} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			statuses[i], _ = doReq(t, ts.URL, "POST", "/transfer-requests/"+id+"/accept", ownerID, nil)
		}(i, id)
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, st := range statuses {
		switch st {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("expected one 200 and one 409, got %v", statuses)
	}
}

func TestHTTP_Authorization(t *testing.T) {
	ts := newServer(t)

	petID := createPet(t, ts.URL, ownerID)

	// Sin usuario
	expectStatus(t, ts.URL, "POST", "/pets/"+petID+"/placement-requests", "", map[string]any{"request_type": "permanent"}, http.StatusUnauthorized)
	// No dueño
	expectStatus(t, ts.URL, "POST", "/pets/"+petID+"/placement-requests", "stranger", map[string]any{"request_type": "permanent"}, http.StatusForbidden)
	// Mascota inexistente gana sobre forbidden
	expectStatus(t, ts.URL, "POST", "/pets/missing/placement-requests", "stranger", map[string]any{"request_type": "permanent"}, http.StatusNotFound)
	// Tipo inválido
	expectStatus(t, ts.URL, "POST", "/pets/"+petID+"/placement-requests", ownerID, map[string]any{"request_type": "weekend"}, http.StatusUnprocessableEntity)

	placementID := createPlacement(t, ts.URL, petID, "permanent")
	expectStatus(t, ts.URL, "POST", "/pets/"+petID+"/placement-requests", ownerID, map[string]any{"request_type": "permanent"}, http.StatusConflict)

	// Sin rol helper no puede ofertar
	expectStatus(t, ts.URL, "POST", "/placement-requests/"+placementID+"/transfer-requests", "no-role", nil, http.StatusForbidden)

	transferID := offer(t, ts.URL, helperID, placementID)
	// Solo el destinatario acepta
	expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/accept", helperID, nil, http.StatusForbidden)
	// Solo el dueño agenda la entrega (y el transfer aún no está aceptado)
	expectStatus(t, ts.URL, "POST", "/transfer-requests/"+transferID+"/handover", ownerID, nil, http.StatusConflict)

	expectStatus(t, ts.URL, "GET", "/health", "", nil, http.StatusOK)
}

func createPet(t *testing.T, baseURL, userID string) string {
	t.Helper()
	return idOf(t, expectStatus(t, baseURL, "POST", "/pets", userID, map[string]any{
		"name":    "Milo",
		"species": "dog",
		"sex":     "male",
	}, http.StatusCreated))
}

func createPlacement(t *testing.T, baseURL, petID, typ string) string {
	t.Helper()
	return idOf(t, expectStatus(t, baseURL, "POST", "/pets/"+petID+"/placement-requests", ownerID,
		map[string]any{"request_type": typ, "expires_at": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)},
		http.StatusCreated))
}

func offer(t *testing.T, baseURL, helper, placementID string) string {
	t.Helper()
	req := reqWithRoles(t, baseURL, "POST", "/placement-requests/"+placementID+"/transfer-requests", helper, "helper",
		map[string]any{"message": "happy to help"})
	st, body := send(t, req)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 offer, got %d body=%s", st, string(body))
	}
	return idOf(t, body)
}

func expectStatus(t *testing.T, baseURL, method, path, userID string, body any, want int) []byte {
	t.Helper()
	st, out := doReq(t, baseURL, method, path, userID, body)
	if st != want {
		t.Fatalf("%s %s: expected %d, got %d body=%s", method, path, want, st, string(out))
	}
	return out
}

func idOf(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		ID string `json:"id"`
	}
	decode(t, body, &out)
	if out.ID == "" {
		t.Fatalf("missing id in body=%s", string(body))
	}
	return out.ID
}

func decode(t *testing.T, body []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(body, dst); err != nil {
		t.Fatalf("decode: %v body=%s", err, string(body))
	}
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()
	return send(t, reqWithRoles(t, baseURL, method, path, debugUserID, "", body))
}

func reqWithRoles(t *testing.T, baseURL, method, path, debugUserID, roles string, body any) *http.Request {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}
	if roles != "" {
		req.Header.Set("X-Debug-Roles", roles)
	}
	return req
}

func send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer res.Body.Close()

	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, b
}
