package media_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/media"
)

type apiRecord struct {
	path     string
	auth     string
	model    string
	filename string
	audio    string
	body     map[string]any
}

func newMediaAPI(status int) (*httptest.Server, func() []apiRecord) {
	var (
		mu      sync.Mutex
		records []apiRecord
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := apiRecord{path: r.URL.Path, auth: r.Header.Get("Authorization")}

		if strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				rec.model = r.FormValue("model")
				if f, h, err := r.FormFile("file"); err == nil {
					rec.filename = h.Filename
					data, _ := io.ReadAll(f)
					rec.audio = string(data)
					f.Close()
				}
			}
		} else {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}

		mu.Lock()
		records = append(records, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
			_, _ = w.Write([]byte(`{"text":"  hello from the microphone \n"}`))
		case strings.HasSuffix(r.URL.Path, "/images/generations"):
			_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://img.example/cat.png"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return srv, func() []apiRecord {
		mu.Lock()
		defer mu.Unlock()
		return append([]apiRecord(nil), records...)
	}
}

func newClient(url string) *media.Client {
	retries := 0
	return media.NewClient(media.Config{
		APIKey:     "sk-test",
		BaseURL:    url + "/",
		MaxRetries: &retries,
	})
}

var _ = Describe("Client", func() {
	Describe("Transcribe", func() {
		It("uploads the audio and returns trimmed text", func() {
			srv, records := newMediaAPI(http.StatusOK)
			DeferCleanup(srv.Close)

			text, err := newClient(srv.URL).Transcribe(context.Background(), strings.NewReader("RIFF"), "/tmp/clip.wav")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("hello from the microphone"))

			recs := records()
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].auth).To(Equal("Bearer sk-test"))
			Expect(recs[0].model).To(Equal(media.DefaultTranscriptionModel))
			Expect(recs[0].filename).To(Equal("clip.wav"))
			Expect(recs[0].audio).To(Equal("RIFF"))
		})

		It("wraps API errors", func() {
			srv, _ := newMediaAPI(http.StatusBadRequest)
			DeferCleanup(srv.Close)

			_, err := newClient(srv.URL).Transcribe(context.Background(), strings.NewReader("RIFF"), "clip.wav")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("transcribing clip.wav"))
		})
	})

	Describe("Generate", func() {
		It("returns the first image url", func() {
			srv, records := newMediaAPI(http.StatusOK)
			DeferCleanup(srv.Close)

			url, err := newClient(srv.URL).Generate(context.Background(), "a cat reading a newspaper")
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://img.example/cat.png"))

			recs := records()
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].body).To(HaveKeyWithValue("prompt", "a cat reading a newspaper"))
			Expect(recs[0].body).To(HaveKeyWithValue("model", media.DefaultImageModel))
			Expect(recs[0].body).To(HaveKeyWithValue("size", media.DefaultImageSize))
		})

		It("rejects a blank prompt without calling the API", func() {
			srv, records := newMediaAPI(http.StatusOK)
			DeferCleanup(srv.Close)

			_, err := newClient(srv.URL).Generate(context.Background(), "   ")
			Expect(err).To(HaveOccurred())
			Expect(records()).To(BeEmpty())
		})
	})
})
