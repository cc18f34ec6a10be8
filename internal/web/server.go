// Package web serves the conversion pipeline over HTTP.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gonewx/danmu2ass/internal/bilibili"
	"github.com/gonewx/danmu2ass/internal/xmlparser"
	"github.com/gonewx/danmu2ass/pkg/canvas"
	"github.com/gonewx/danmu2ass/pkg/convert"
	"github.com/google/uuid"
)

const maxRequestBytes = 64 << 20

// Server handles POST /convert and serves the web UI at /.
type Server struct {
	Client    *bilibili.Client
	StaticDir string // replaces the built-in UI when set
	Verbose   bool
}

// NewServer returns a server that fetches remote danmaku with client.
func NewServer(client *bilibili.Client, staticDir string) *Server {
	return &Server{Client: client, StaticDir: staticDir}
}

// Handler builds the request multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/convert", s.handleConvert)
	if s.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.StaticDir)))
	} else {
		mux.Handle("/", http.FileServer(embeddedUI()))
	}
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Web] danmu2ass web service running on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("[Web] Shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

// Source is the tagged source of a convert request:
//
//	{"type": "xml", "content": {"content": "<i>...</i>", "title": "a.xml"}}
//	{"type": "url", "content": {"url": "https://www.bilibili.com/video/BV..."}}
type Source struct {
	Type    string        `json:"type"`
	Content SourceContent `json:"content"`
}

// SourceContent holds the fields of either source type.
type SourceContent struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// ConvertRequest is the body of POST /convert.
type ConvertRequest struct {
	Source   Source        `json:"source"`
	Config   canvas.Config `json:"config"`
	Denylist []string      `json:"denylist"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := ConvertRequest{Config: canvas.DefaultConfig()}
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.fail(w, reqID, fmt.Errorf("invalid request body: %w", err))
		return
	}

	title, src, err := s.openSource(r.Context(), reqID, req.Source)
	if err != nil {
		s.fail(w, reqID, err)
		return
	}

	var out bytes.Buffer
	report, err := convert.Convert(src, title, &out, convert.Options{
		Config:   req.Config,
		Denylist: req.Denylist,
		Verbose:  s.Verbose,
	})
	if err != nil {
		s.fail(w, reqID, err)
		return
	}
	log.Printf("[Web] %s converted %q: placed=%d dropped=%d", reqID, title, report.Placed, report.Dropped)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ass"`, percentEncode(title)))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes())
}

func (s *Server) openSource(ctx context.Context, reqID string, src Source) (string, convert.Source, error) {
	switch src.Type {
	case "xml":
		log.Printf("[Web] %s parsing %d bytes of XML", reqID, len(src.Content.Content))
		title := strings.TrimSuffix(src.Content.Title, ".xml")
		if title == "" {
			title = "danmaku"
		}
		return title, xmlparser.NewParser(strings.NewReader(src.Content.Content)), nil

	case "url":
		in, err := bilibili.ParseInput(src.Content.URL)
		if err != nil {
			return "", nil, err
		}
		if in.Kind == bilibili.InputFile || in.Kind == bilibili.InputFolder {
			return "", nil, fmt.Errorf("unsupported url %q", src.Content.URL)
		}
		if in.Kind == bilibili.InputBV && in.Page == 0 {
			in.Page = 1
		}

		videos, err := s.Client.Resolve(ctx, in)
		if err != nil {
			return "", nil, err
		}
		if len(videos) == 0 {
			return "", nil, errors.New("no video found")
		}
		video := videos[0]

		elems, err := s.Client.DanmakuForVideo(ctx, video.CID, video.DurationSec)
		if err != nil {
			return "", nil, err
		}
		items, skipped := bilibili.ToDanmaku(elems)
		log.Printf("[Web] %s downloaded %d danmaku (%d skipped), title=%s", reqID, len(items), skipped, video.Title)
		return video.Title, convert.NewSliceSource(items), nil

	default:
		return "", nil, fmt.Errorf("unsupported source type %q", src.Type)
	}
}

func (s *Server) fail(w http.ResponseWriter, reqID string, err error) {
	log.Printf("[Web] %s error: %v", reqID, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"errmsg": err.Error()})
}

// percentEncode escapes every byte that is not an ASCII letter or digit.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0xF])
	}
	return sb.String()
}
