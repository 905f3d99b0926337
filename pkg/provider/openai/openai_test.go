package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/provider/openai"
)

func readBody(req *http.Request) map[string]any {
	data, err := io.ReadAll(req.Body)
	Expect(err).NotTo(HaveOccurred())

	var body map[string]any
	Expect(json.Unmarshal(data, &body)).To(Succeed())
	return body
}

var _ = Describe("OpenAI Provider", func() {
	var (
		p     *openai.Provider
		ctx   context.Context
		turns []llm.Turn
	)

	BeforeEach(func() {
		p = openai.New()
		ctx = context.Background()
		turns = []llm.Turn{
			llm.NewTurn(llm.RoleSystem, "be brief"),
			llm.NewTurn(llm.RoleUser, "hi"),
		}
	})

	It("has the openai name", func() {
		Expect(p.Name()).To(Equal("openai"))
	})

	It("builds a streaming chat completion request", func() {
		temp := 0.5
		req, err := p.NewRequest(ctx, llm.Binding{
			Endpoint: "https://api.deepseek.com/v1/chat/completions",
			APIKey:   "sk-test",
			Model:    "deepseek-chat",
			Params:   llm.Params{Temperature: &temp},
		}, turns)
		Expect(err).NotTo(HaveOccurred())

		Expect(req.Method).To(Equal(http.MethodPost))
		Expect(req.URL.String()).To(Equal("https://api.deepseek.com/v1/chat/completions"))
		Expect(req.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
		Expect(req.Header.Get("Content-Type")).To(Equal("application/json"))

		body := readBody(req)
		Expect(body["model"]).To(Equal("deepseek-chat"))
		Expect(body["stream"]).To(BeTrue())
		Expect(body["temperature"]).To(Equal(0.5))
		Expect(body).NotTo(HaveKey("top_p"))
		Expect(body["messages"]).To(HaveLen(2))
	})

	It("omits the authorization header without a key", func() {
		req, err := p.NewRequest(ctx, llm.Binding{
			Endpoint: "http://localhost:11434/v1/chat/completions",
			Model:    "llama3.2",
		}, turns)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Header.Get("Authorization")).To(BeEmpty())
	})

	It("merges extra fields into the body", func() {
		req, err := p.NewRequest(ctx, llm.Binding{
			Endpoint: "http://upstream",
			Model:    "gpt-4o",
			Extra: map[string]any{
				"user":                         "alice",
				"stream_options.include_usage": true,
			},
		}, turns)
		Expect(err).NotTo(HaveOccurred())

		body := readBody(req)
		Expect(body["user"]).To(Equal("alice"))
		Expect(body["stream_options"]).To(Equal(map[string]any{"include_usage": true}))
	})

	It("rejects bindings without a model or endpoint", func() {
		_, err := p.NewRequest(ctx, llm.Binding{Endpoint: "http://upstream"}, turns)
		Expect(err).To(MatchError(ContainSubstring("model is required")))

		_, err = p.NewRequest(ctx, llm.Binding{Model: "gpt-4o"}, turns)
		Expect(err).To(HaveOccurred())
	})

	It("uses the relay defaults", func() {
		Expect(p.RelayOptions()).To(BeEmpty())
	})
})
