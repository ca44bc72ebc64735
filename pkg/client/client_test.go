package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"catalog-query-api/pkg/metadata"
	"catalog-query-api/pkg/query"
)

// fakeServer implements just enough of the catalog REST interface for the
// client tests.
func fakeServer(t *testing.T, infoCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var creds struct {
			Plugin      string              `json:"plugin"`
			Credentials []map[string]string `json:"credentials"`
		}
		if err := json.Unmarshal([]byte(r.FormValue("json")), &creds); err != nil {
			http.Error(w, "bad credentials document", http.StatusBadRequest)
			return
		}
		if creds.Plugin != "simple" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{
				"code":    "SESSION",
				"message": "unknown authenticator " + creds.Plugin,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"sessionId": "sess-1234"})
	})
	mux.HandleFunc("DELETE /session/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "sess-1234" {
			http.Error(w, "no such session", http.StatusForbidden)
		}
	})
	mux.HandleFunc("PUT /session/{id}", func(w http.ResponseWriter, r *http.Request) {})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"version": "5.0.1"})
	})

	mux.HandleFunc("GET /entityManager", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("sessionId") != "sess-1234" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{
				"code": "SESSION", "message": "session expired",
			})
			return
		}
		json.NewEncoder(w).Encode([]any{
			map[string]any{"Facility": map[string]any{"id": 1, "name": "LILS"}},
		})
	})
	mux.HandleFunc("POST /entityManager", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("sessionId") != "sess-1234" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode([]int64{42})
	})
	mux.HandleFunc("GET /entityManager/getEntityNames", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]string{"Datafile", "Dataset", "Facility"})
	})
	mux.HandleFunc("GET /entityManager/getEntityInfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		atomic.AddInt32(infoCalls, 1)
		switch r.URL.Query().Get("entityName") {
		case "Rule":
			json.NewEncoder(w).Encode(map[string]any{
				"name": "Rule",
				"fields": []map[string]any{
					{"field": map[string]any{"name": "what", "type": "String", "notNullable": true}},
					{"field": map[string]any{"name": "crudFlags", "type": "String", "notNullable": true}},
					{"field": map[string]any{"name": "grouping", "type": "Grouping", "relType": "ONE"}},
				},
			})
		case "Grouping":
			json.NewEncoder(w).Encode(map[string]any{
				"name": "Grouping",
				"constraints": []map[string]any{
					{"fieldNames": []string{"name"}},
				},
				"fields": []map[string]any{
					{"field": map[string]any{"name": "name", "type": "String", "notNullable": true}},
				},
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func loggedInClient(t *testing.T) (*Client, *int32) {
	t.Helper()
	var infoCalls int32
	srv := fakeServer(t, &infoCalls)
	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Login(context.Background(), "simple", "root", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return c, &infoCalls
}

func TestLoginLogout(t *testing.T) {
	c, _ := loggedInClient(t)
	if c.SessionID() != "sess-1234" {
		t.Errorf("SessionID = %q", c.SessionID())
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh: %v", err)
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Errorf("Logout: %v", err)
	}
	if c.SessionID() != "" {
		t.Errorf("SessionID after logout = %q", c.SessionID())
	}
	// A second logout has no session to close.
	if err := c.Logout(context.Background()); err != nil {
		t.Errorf("repeated Logout: %v", err)
	}
}

func TestLoginFailure(t *testing.T) {
	var infoCalls int32
	srv := fakeServer(t, &infoCalls)
	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Login(context.Background(), "ldap", "root", "secret")
	if err == nil {
		t.Fatalf("login with unknown authenticator succeeded")
	}
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want ServerError", err)
	}
	if serr.Status != http.StatusForbidden || serr.Code != "SESSION" {
		t.Errorf("ServerError = %+v", serr)
	}
	if c.SessionID() != "" {
		t.Errorf("session set after failed login: %q", c.SessionID())
	}
}

func TestVersion(t *testing.T) {
	c, _ := loggedInClient(t)
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "5.0.1" {
		t.Errorf("Version = %q", v)
	}
}

func TestSearch(t *testing.T) {
	c, _ := loggedInClient(t)
	rows, err := c.Search(context.Background(), "SELECT o FROM Facility o")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Search returned %d rows, want 1", len(rows))
	}
}

func TestSearchRequiresSession(t *testing.T) {
	var infoCalls int32
	srv := fakeServer(t, &infoCalls)
	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Search(context.Background(), "SELECT o FROM Facility o"); err == nil {
		t.Errorf("search without login succeeded")
	}
}

func TestSearchQueryRendersBeforeRequest(t *testing.T) {
	c, _ := loggedInClient(t)
	q, err := query.New(metadata.DefaultSchema(), "Facility",
		query.WithConditions(map[string]string{"name": "= 'LILS'"}))
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	rows, err := c.SearchQuery(context.Background(), q)
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("SearchQuery returned %d rows, want 1", len(rows))
	}
}

func TestCreate(t *testing.T) {
	c, _ := loggedInClient(t)
	id, err := c.Create(context.Background(), "Facility", map[string]any{"name": "ESNF"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 42 {
		t.Errorf("Create id = %d, want 42", id)
	}
}

func TestEntityInfoMapping(t *testing.T) {
	c, _ := loggedInClient(t)
	et, err := c.EntityInfo(context.Background(), "Rule")
	if err != nil {
		t.Fatalf("EntityInfo: %v", err)
	}

	grouping, ok := et.Attr("grouping")
	if !ok || grouping.Kind != metadata.KindOne || grouping.Type != "Grouping" {
		t.Errorf("grouping attribute = %+v (ok=%v)", grouping, ok)
	}
	what, ok := et.Attr("what")
	if !ok || what.Kind != metadata.KindAttribute || !what.NotNullable {
		t.Errorf("what attribute = %+v (ok=%v)", what, ok)
	}
	// The server declares no sort attributes for Rule; the override table
	// supplies them.
	if len(et.SortAttrs) != 2 || et.SortAttrs[0] != "grouping" || et.SortAttrs[1] != "what" {
		t.Errorf("SortAttrs = %v", et.SortAttrs)
	}
}

func TestEntityInfoNotFound(t *testing.T) {
	c, _ := loggedInClient(t)
	_, err := c.EntityInfo(context.Background(), "Bogus")
	if err == nil {
		t.Fatalf("EntityInfo of unknown type succeeded")
	}
	if !metadata.IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestSchemaProviderCaches(t *testing.T) {
	c, infoCalls := loggedInClient(t)
	p := NewSchemaProvider(context.Background(), c)

	for i := 0; i < 3; i++ {
		if _, err := p.EntityType("Rule"); err != nil {
			t.Fatalf("EntityType: %v", err)
		}
	}
	if n := atomic.LoadInt32(infoCalls); n != 1 {
		t.Errorf("server reflected %d times, want 1", n)
	}
}

func TestSchemaProviderWorksWithQuery(t *testing.T) {
	c, _ := loggedInClient(t)
	p := NewSchemaProvider(context.Background(), c)

	q, err := query.New(p, "Rule", query.WithNaturalOrder())
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	got := q.Render()
	// The server declares no constraint for Rule, so the id tiebreaker from
	// the default constraint closes the order.
	want := "SELECT o FROM Rule o JOIN o.grouping AS g ORDER BY g.name, o.what, o.id"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}
