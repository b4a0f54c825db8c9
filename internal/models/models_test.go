package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFeedItem(t *testing.T) {
	raw := `{"id":"eh:42:AbC","source":"eh_works","gid":42,"token":"AbC","title":"T","eh_url":"https://e-hentai.org/g/42/AbC/","ex_url":"","tags":["a"],"tags_translated":[],"meta":{"posted":1},"unknown_field":"kept"}`

	t.Run("decodes known fields", func(t *testing.T) {
		var item FeedItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if item.GID != 42 || item.Token != "AbC" || item.Source != SourceEHWorks {
			t.Errorf("unexpected fields %+v", item)
		}
		if item.Key() != "42:abc" {
			t.Errorf("Key() = %s", item.Key())
		}
		if !item.IsEHWork() {
			t.Error("expected eh work")
		}
		if item.URL() != "https://e-hentai.org/g/42/AbC/" {
			t.Errorf("URL() = %s", item.URL())
		}
		if got := item.DisplayTags(); len(got) != 1 || got[0] != "a" {
			t.Errorf("DisplayTags() = %v", got)
		}
	})

	t.Run("re-encodes the original object", func(t *testing.T) {
		var item FeedItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out, err := json.Marshal(item)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(out), `"unknown_field":"kept"`) {
			t.Errorf("expected unknown field to survive, got %s", out)
		}
	})

	t.Run("IsEHWork requires gid and token", func(t *testing.T) {
		tests := []struct {
			name string
			item FeedItem
			want bool
		}{
			{"works source", FeedItem{Source: "works", GID: 1, Token: "a"}, false},
			{"zero gid", FeedItem{Source: SourceEHWorks, Token: "a"}, false},
			{"empty token", FeedItem{Source: SourceEHWorks, GID: 1}, false},
			{"complete", FeedItem{Source: SourceEHWorks, GID: 1, Token: "a"}, true},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				if got := tc.item.IsEHWork(); got != tc.want {
					t.Errorf("IsEHWork() = %v, want %v", got, tc.want)
				}
			})
		}
	})
}

func TestChatSession(t *testing.T) {
	s := NewChatSession("default")
	if s.Title != DefaultSessionTitle {
		t.Errorf("expected default title, got %s", s.Title)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("expected valid session: %v", err)
	}

	s.Messages = []ChatMessage{{Role: "system"}}
	if err := s.Validate(); err == nil {
		t.Error("expected invalid role to fail")
	}

	if err := (&ChatSession{}).Validate(); err == nil {
		t.Error("expected empty id to fail")
	}
}

func TestTaskFailed(t *testing.T) {
	for status, want := range map[string]bool{"failed": true, "timeout": true, "running": false, "success": false} {
		if got := (Task{Status: status}).Failed(); got != want {
			t.Errorf("Failed(%s) = %v", status, got)
		}
	}
}
