package channels

import "testing"

func TestAccessList(t *testing.T) {
	t.Run("empty list allows everyone", func(t *testing.T) {
		for _, a := range []*AccessList{nil, NewAccessList(nil), NewAccessList([]string{})} {
			if !a.Allowed("telegram", "123") {
				t.Error("empty access list must allow everyone")
			}
		}
	})

	t.Run("entries restrict by channel and user", func(t *testing.T) {
		a := NewAccessList([]string{"telegram:123", " discord:abc "})

		if !a.Allowed("telegram", "123") {
			t.Error("listed user must be allowed")
		}
		if !a.Allowed("discord", "abc") {
			t.Error("entries must be trimmed")
		}
		if a.Allowed("telegram", "999") {
			t.Error("unlisted user must be denied")
		}
		if a.Allowed("discord", "123") {
			t.Error("the same id on another channel must be denied")
		}
	})
}
