package media

import (
	"bytes"
	"cmp"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultSlidesEndpoint is iFlytek's hosted slide generation API.
	DefaultSlidesEndpoint = "https://zwapi.xfyun.cn/api/aippt"

	defaultSlidesPoll = 5 * time.Second
)

// Slide themes and generation modes the service accepts.
var (
	SlideThemes = []string{"auto", "purple", "green", "lightblue", "taupe", "blue", "telecomRed", "telecomGreen"}
	SlideModes  = []string{"auto", "topic", "text"}
)

// SlideMaker turns a description into the download URL of a generated deck.
type SlideMaker interface {
	MakeSlides(ctx context.Context, text string) (string, error)
}

// SlidesConfig configures a Slides client. AppID and Secret are the xfyun
// credential.
type SlidesConfig struct {
	AppID   string
	Secret  string
	BaseURL string

	Theme      string
	Mode       string
	Author     string
	SpeakNotes bool
	CoverImage bool

	// PollInterval is the wait between progress checks.
	PollInterval time.Duration

	HTTPClient *http.Client
	Now        func() time.Time
}

// Slides creates decks with a create-then-poll task API.
type Slides struct {
	cfg SlidesConfig
}

// NewSlides creates a Slides client.
func NewSlides(c SlidesConfig) (*Slides, error) {
	if c.AppID == "" || c.Secret == "" {
		return nil, errors.New("slides: app id and API secret are required")
	}
	c.BaseURL = strings.TrimRight(cmp.Or(c.BaseURL, DefaultSlidesEndpoint), "/")
	c.Theme = cmp.Or(c.Theme, "auto")
	c.Mode = cmp.Or(c.Mode, "auto")
	c.PollInterval = cmp.Or(c.PollInterval, defaultSlidesPoll)
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Slides{cfg: c}, nil
}

type slidesTask struct {
	Query      string `json:"query"`
	Mode       string `json:"create_model"`
	Theme      string `json:"theme"`
	Author     string `json:"author"`
	SpeakNotes bool   `json:"is_card_note"`
	CoverImage bool   `json:"is_cover_img"`
}

// MakeSlides starts a generation task for text and polls it until the deck
// is ready or ctx is done.
func (s *Slides) MakeSlides(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("slides description is empty")
	}

	header := s.signedHeader()
	sid, err := s.create(ctx, header, text)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		deck, done, err := s.progress(ctx, header, sid)
		if err != nil {
			return "", err
		}
		if done {
			return deck, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// signedHeader signs app id + timestamp: base64(hmac-sha1(secret, md5hex)).
func (s *Slides) signedHeader() http.Header {
	ts := strconv.FormatInt(s.cfg.Now().Unix(), 10)
	sum := md5.Sum([]byte(s.cfg.AppID + ts))

	mac := hmac.New(sha1.New, []byte(s.cfg.Secret))
	mac.Write([]byte(hex.EncodeToString(sum[:])))

	h := http.Header{}
	h.Set("appId", s.cfg.AppID)
	h.Set("timestamp", ts)
	h.Set("signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return h
}

func (s *Slides) create(ctx context.Context, header http.Header, text string) (string, error) {
	body, err := json.Marshal(slidesTask{
		Query:      text,
		Mode:       s.cfg.Mode,
		Theme:      s.cfg.Theme,
		Author:     s.cfg.Author,
		SpeakNotes: s.cfg.SpeakNotes,
		CoverImage: s.cfg.CoverImage,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/create", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header = header.Clone()
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	res, err := s.call(req)
	if err != nil {
		return "", fmt.Errorf("creating slides task: %w", err)
	}

	sid := res.Get("data.sid").String()
	if sid == "" {
		return "", errors.New("creating slides task: response has no task id")
	}
	return sid, nil
}

func (s *Slides) progress(ctx context.Context, header http.Header, sid string) (string, bool, error) {
	u := s.cfg.BaseURL + "/progress?sid=" + url.QueryEscape(sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, err
	}
	req.Header = header.Clone()

	res, err := s.call(req)
	if err != nil {
		return "", false, fmt.Errorf("checking slides task %s: %w", sid, err)
	}

	if res.Get("data.process").Int() < 100 {
		return "", false, nil
	}
	deck := res.Get("data.pptUrl").String()
	if deck == "" {
		return "", false, fmt.Errorf("slides task %s finished without a download url", sid)
	}
	return deck, true, nil
}

// call sends req and returns the body of a successful {"code":0} reply.
func (s *Slides) call(req *http.Request) (gjson.Result, error) {
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.New("response is not JSON")
	}

	res := gjson.ParseBytes(data)
	if code := res.Get("code").Int(); code != 0 {
		return gjson.Result{}, fmt.Errorf("code %d: %s", code, res.Get("desc").String())
	}
	return res, nil
}
