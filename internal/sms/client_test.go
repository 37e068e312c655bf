package sms

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend(t *testing.T) {
	var gotPath, gotFrom, gotTo, gotBody string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotFrom = r.PostForm.Get("From")
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "AC000", "secret", slog.New(slog.DiscardHandler))

	msg, err := c.Send(context.Background(), "+18186518560", "+15551230001", "Thanks for calling!")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if msg.SID != "SM123" {
		t.Errorf("SID = %q", msg.SID)
	}
	if gotPath != "/2010-04-01/Accounts/AC000/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC000" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotFrom != "+18186518560" || gotTo != "+15551230001" || gotBody != "Thanks for calling!" {
		t.Errorf("form = From %q To %q Body %q", gotFrom, gotTo, gotBody)
	}
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' phone number"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "AC000", "secret", slog.New(slog.DiscardHandler))

	_, err := c.Send(context.Background(), "+18186518560", "bogus", "hi")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("error = %v, want ErrDelivery", err)
	}
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := New(srv.URL, "AC000", "secret", slog.New(slog.DiscardHandler))

	_, err := c.Send(context.Background(), "+18186518560", "+15551230001", "hi")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("error = %v, want ErrDelivery", err)
	}
}
