package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestClientQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/ga" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("dimensions"); got != "ga:fullReferrer" {
			t.Errorf("dimensions = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"columnHeaders":[{"name":"ga:fullReferrer"},{"name":"ga:pageviews"}],
			"rows":[["google","12"],["(direct)","4"]],"totalResults":2}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	res, err := c.Query(context.Background(), Query{
		ViewID: "ga:1", StartDate: "7daysAgo", EndDate: "today",
		Dimensions: []string{"ga:fullReferrer"},
		Metrics:    []string{"ga:pageviews"},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !reflect.DeepEqual(res.Rows, [][]string{{"google", "12"}, {"(direct)", "4"}}) {
		t.Errorf("rows = %v", res.Rows)
	}
	if !reflect.DeepEqual(res.ColumnHeaders, []string{"ga:fullReferrer", "ga:pageviews"}) {
		t.Errorf("headers = %v", res.ColumnHeaders)
	}
}

func TestClientNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalResults":0}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "").Query(context.Background(), Query{Metrics: []string{"ga:sessions"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Errorf("rows = %#v, want empty slice", res.Rows)
	}
}

func TestClientServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"User does not have sufficient permissions"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Query(context.Background(), Query{Metrics: []string{"ga:sessions"}})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if se.Code != 403 || se.Message == "" {
		t.Errorf("ServiceError = %+v", se)
	}
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Query(context.Background(), Query{Metrics: []string{"ga:sessions"}})
	var se *ServiceError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 ServiceError", err)
	}
}
