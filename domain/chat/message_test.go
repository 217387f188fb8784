package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReactions_Toggle_Add_Then_Remove(t *testing.T) {
	req := require.New(t)
	r := Reactions{}

	// When alice toggles once
	added := r.Toggle("👍", "alice")

	// Then she is in the set
	req.True(added)
	req.Equal([]string{"alice"}, r["👍"])

	// When she toggles again
	added = r.Toggle("👍", "alice")

	// Then the state before the first toggle is restored
	req.False(added)
	req.NotContains(r, "👍")
}

func TestReactions_Toggle_Removes_Only_The_Toggling_Identity(t *testing.T) {
	req := require.New(t)
	r := Reactions{}
	r.Toggle("🔥", "alice")
	r.Toggle("🔥", "bob")
	r.Toggle("🔥", "carol")

	added := r.Toggle("🔥", "bob")

	req.False(added)
	req.ElementsMatch([]string{"alice", "carol"}, r["🔥"])
}

func TestReactions_Toggle_Distinct_Emojis_Are_Independent(t *testing.T) {
	req := require.New(t)
	r := Reactions{}

	r.Toggle("👍", "alice")
	r.Toggle("👎", "alice")
	r.Toggle("👍", "alice")

	req.NotContains(r, "👍")
	req.Equal([]string{"alice"}, r["👎"])
}

func TestReactions_Clone_Is_Independent(t *testing.T) {
	req := require.New(t)
	r := Reactions{}
	r.Toggle("👍", "alice")

	clone := r.Clone()
	clone.Toggle("👍", "bob")
	clone.Toggle("🔥", "carol")

	req.Equal([]string{"alice"}, r["👍"])
	req.NotContains(r, "🔥")
	req.ElementsMatch([]string{"alice", "bob"}, clone["👍"])
}

func TestMessage_Concerns(t *testing.T) {
	req := require.New(t)

	public := Message{Sender: "alice"}
	req.False(public.Private())
	req.Empty(public.Concerns())

	bob := "bob"
	private := Message{Sender: "alice", Receiver: &bob}
	req.True(private.Private())
	req.Equal([]string{"alice", "bob"}, private.Concerns())

	// A note to self concerns its author exactly once
	alice := "alice"
	self := Message{Sender: "alice", Receiver: &alice}
	req.Equal([]string{"alice"}, self.Concerns())
}
