package relay_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/relay"
)

// deltaFrame renders an OpenAI-style chunk carrying content.
func deltaFrame(content string) string {
	return `data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func drain(s *relay.Stream) []string {
	var out []string
	for f := range s.Fragments() {
		out = append(out, f)
	}
	return out
}

// trackingBody records whether Close was called.
type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

var _ = Describe("Relay", func() {
	var r *relay.Relay

	BeforeEach(func() {
		r = relay.New()
	})

	Describe("Open", func() {
		It("yields every delta in order and stops at the done token", func() {
			body := deltaFrame("Hel") + deltaFrame("lo") + deltaFrame("!") + "data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"Hel", "lo", "!"}))
			Expect(s.Content()).To(Equal("Hello!"))
			Expect(s.Complete()).To(BeTrue())
			Expect(s.Err()).NotTo(HaveOccurred())
			Expect(s.Count()).To(Equal(3))
		})

		It("ignores frames after the done token", func() {
			body := deltaFrame("a") + "data: [DONE]\n\n" + deltaFrame("b")
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"a"}))
		})

		It("treats a clean end of body as completion", func() {
			s, err := r.Open(okResponse(deltaFrame("x") + deltaFrame("y")))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"x", "y"}))
			Expect(s.Complete()).To(BeTrue())
		})

		It("skips a malformed frame between two valid frames", func() {
			body := deltaFrame("one") + "data: {\"choices\":[{\"delta\":\n\n" + deltaFrame("two") + "data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"one", "two"}))
			Expect(s.Malformed()).To(Equal(1))
			Expect(s.Complete()).To(BeTrue())
		})

		It("yields nothing for role-only and empty deltas", func() {
			body := `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":""}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":null}}]}` + "\n\n" +
				`data: {"choices":[]}` + "\n\n" +
				deltaFrame("only") +
				"data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"only"}))
			Expect(s.Malformed()).To(BeZero())
		})

		It("does not deduplicate repeated fragments by default", func() {
			body := deltaFrame("ha") + deltaFrame("ha") + "data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"ha", "ha"}))
			Expect(s.Content()).To(Equal("haha"))
		})

		It("returns a TransportError for non-success statuses without parsing", func() {
			body := &trackingBody{Reader: strings.NewReader(`{"error":"rate limited"}`)}
			s, err := r.Open(&http.Response{StatusCode: http.StatusTooManyRequests, Body: body})

			Expect(s).To(BeNil())
			var te *relay.TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(te.Body).To(ContainSubstring("rate limited"))
			Expect(body.closed).To(BeTrue())
		})

		It("rejects a nil response", func() {
			_, err := r.Open(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("read failures", func() {
		It("ends early, keeps partial content and reports the error", func() {
			src := io.MultiReader(strings.NewReader(deltaFrame("par")), iotest.ErrReader(errors.New("connection reset")))
			s := r.Read(io.NopCloser(src))

			Expect(drain(s)).To(Equal([]string{"par"}))
			Expect(s.Complete()).To(BeFalse())
			Expect(s.Err()).To(MatchError("connection reset"))
			Expect(s.Content()).To(Equal("par"))
		})
	})

	Describe("Close", func() {
		It("abandons the stream and releases the connection", func() {
			body := &trackingBody{Reader: strings.NewReader(deltaFrame("a") + deltaFrame("b") + "data: [DONE]\n\n")}
			s := r.Read(body)

			f, ok := s.Next()
			Expect(ok).To(BeTrue())
			Expect(f).To(Equal("a"))

			Expect(s.Close()).To(Succeed())
			Expect(body.closed).To(BeTrue())
			Expect(s.Abandoned()).To(BeTrue())
			Expect(s.Complete()).To(BeFalse())

			_, ok = s.Next()
			Expect(ok).To(BeFalse())
			Expect(s.Content()).To(Equal("a"))
		})

		It("is idempotent and does not mark finished streams as abandoned", func() {
			body := &trackingBody{Reader: strings.NewReader(deltaFrame("a") + "data: [DONE]\n\n")}
			s := r.Read(body)
			drain(s)

			Expect(s.Close()).To(Succeed())
			Expect(s.Close()).To(Succeed())
			Expect(s.Abandoned()).To(BeFalse())
			Expect(s.Complete()).To(BeTrue())
		})
	})

	Describe("options", func() {
		It("extracts deltas from a custom path", func() {
			r = relay.New(relay.WithDeltaPath("delta.text"))
			body := `data: {"type":"content_block_delta","delta":{"text":"Hi"}}` + "\n\n" +
				`data: {"type":"message_stop"}` + "\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"Hi"}))
		})

		It("yields one fragment per array element for wildcard paths", func() {
			r = relay.New(relay.WithDeltaPath("arguments.0.messages.#.text"))
			body := `data: {"arguments":[{"messages":[{"text":"a"},{"author":"bot"},{"text":"b"}]}]}` + "\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"a", "b"}))
		})

		It("honors a custom done token", func() {
			r = relay.New(relay.WithDoneToken("<END>"))
			s, err := r.Open(okResponse(deltaFrame("a") + "data: <END>\n\n" + deltaFrame("b")))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"a"}))
		})

		It("drops exact repeats when dedupe is enabled", func() {
			r = relay.New(relay.WithDedupe())
			body := deltaFrame("Hello") + deltaFrame("Hello") + deltaFrame(" world") + "data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			Expect(drain(s)).To(Equal([]string{"Hello", " world"}))
		})

		It("applies transforms only to the final content", func() {
			r = relay.New(relay.WithTransform(relay.StripCitations))
			body := deltaFrame("Aspirin<sup>1</sup>") + deltaFrame(" helps<sup>2</sup>.") + "data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			drain(s)
			Expect(s.Content()).To(Equal("Aspirin<sup>1</sup> helps<sup>2</sup>."))
			Expect(s.Final()).To(Equal("Aspirin helps."))
		})

		It("tees raw lines to the capture writer", func() {
			var raw bytes.Buffer
			r = relay.New(relay.WithRawCapture(&raw))
			body := deltaFrame("a") + "data: [DONE]\n\n"
			s, err := r.Open(okResponse(body))
			Expect(err).NotTo(HaveOccurred())

			drain(s)
			Expect(raw.String()).To(ContainSubstring(`"content":"a"`))
			Expect(raw.String()).To(ContainSubstring("data: [DONE]"))
		})

		It("derives copies without mutating the base relay", func() {
			base := relay.New()
			derived := base.With(relay.WithTransform(strings.ToUpper))

			s := base.Read(io.NopCloser(strings.NewReader(deltaFrame("a"))))
			drain(s)
			Expect(s.Final()).To(Equal("a"))

			s = derived.Read(io.NopCloser(strings.NewReader(deltaFrame("a"))))
			drain(s)
			Expect(s.Final()).To(Equal("A"))
		})
	})
})

var _ = Describe("Transforms", func() {
	It("strips citation markup idempotently", func() {
		in := "a<sup>12</sup>b<sup><sup>3</sup>4</sup>c"
		once := relay.StripCitations(in)
		Expect(once).To(Equal("abc"))
		Expect(relay.StripCitations(once)).To(Equal(once))
	})

	It("leaves other markup alone", func() {
		Expect(relay.StripCitations("x<sup>a</sup>")).To(Equal("x<sup>a</sup>"))
	})

	It("chains transforms left to right", func() {
		t := relay.Chain(strings.TrimSpace, relay.StripCitations, nil)
		Expect(t("  hi<sup>1</sup> ")).To(Equal("hi"))
	})
})
