package eventstream_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/llm"
)

var _ = Describe("Event", func() {
	It("fills identity fields", func() {
		event := eventstream.NewSessionEvent(eventstream.EventTypeSessionSaved, "alice", "demo")
		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(strings.HasPrefix(event.EventID, "evt_")).To(BeTrue())
		Expect(event.EmittedAt.IsZero()).To(BeFalse())
		Expect(event.Key()).To(Equal("alice/demo"))
	})

	It("gives every event a distinct id", func() {
		a := eventstream.NewSessionEvent(eventstream.EventTypeSessionSaved, "alice", "demo")
		b := eventstream.NewSessionEvent(eventstream.EventTypeSessionSaved, "alice", "demo")
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("marshals turn events with expected top-level keys", func() {
		event := eventstream.NewSessionEvent(eventstream.EventTypeTurnAppended, "alice", "demo")
		turn := llm.NewTurn(llm.RoleAssistant, "Hello!")
		event.Turn = &turn
		event.TurnIndex = 1
		event.Turns = 2
		event.Source = eventstream.EventSource{Provider: "deepseek", Model: "deepseek-chat"}

		data, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var payload map[string]any
		Expect(json.Unmarshal(data, &payload)).To(Succeed())
		Expect(payload).To(HaveKey("schema_version"))
		Expect(payload).To(HaveKey("event_type"))
		Expect(payload).To(HaveKey("event_id"))
		Expect(payload).To(HaveKey("emitted_at"))
		Expect(payload["owner"]).To(Equal("alice"))
		Expect(payload["session"]).To(Equal("demo"))
		Expect(payload["turn"]).To(Equal(map[string]any{"role": "assistant", "content": "Hello!"}))
		Expect(payload["source"]).To(Equal(map[string]any{"provider": "deepseek", "model": "deepseek-chat"}))
	})

	It("omits the turn for session events", func() {
		data, err := json.Marshal(eventstream.NewSessionEvent(eventstream.EventTypeSessionRemoved, "alice", "demo"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).NotTo(ContainSubstring(`"turn"`))
	})
})
