package kafka

import (
	"encoding/json"
	"testing"
)

func TestEncodeKeepsKeyAndJSON(t *testing.T) {
	msgs, err := encode([]Event{{Key: "session-1", Value: map[string]int{"results": 3}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Key) != "session-1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	var decoded map[string]int
	if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil || decoded["results"] != 3 {
		t.Errorf("unexpected value %s (err %v)", msgs[0].Value, err)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := encode([]Event{{Key: "k", Value: make(chan int)}}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Intent string `json:"intent"`
	}
	got, err := DecodeJSON[event]([]byte(`{"intent":"action"}`))
	if err != nil || got.Intent != "action" {
		t.Fatalf("DecodeJSON = %+v, %v", got, err)
	}
	if _, err := DecodeJSON[event]([]byte(`{`)); err == nil {
		t.Error("expected error for truncated json")
	}
}
