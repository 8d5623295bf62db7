// Package procworkload implements the external-process workload format:
// this runtime's rendering of spec.md §4.7's second workload definition kind
// ("a directory with an entry point file exposing a factory producing a
// runtime agent on demand"). The original's entry point is a Python
// callable loaded in-process by an ADK-hosting Python runtime; Go has no
// way to host that callable directly, so the contract is reconceived as an
// external process speaking a small framed JSON protocol over stdio — the
// same Content-Length framing runtime/mcp/stdioclient.go already
// implements for the MCP Client Manager (C4) — rather than embedding or
// shelling out to a Python interpreter in an ad hoc, unframed way.
//
// A process workload directory is "<dir>/agent.json" (its metadata: name,
// description, the command to launch) plus the executable itself. The
// launched process receives one framed request per RunAsync call
// carrying the new message and the session id, and replies with a stream of framed event
// frames terminated by a frame with "final": true — directly analogous to
// runtime/session/model.Event's own Author/Content/IsFinal shape, so a
// conforming process can be implemented in any language without linking
// against this module at all.
package procworkload

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
	"github.com/streetrace-ai/streetrace-go/runtime/workload"
)

// manifestFile names the metadata file Identify/Load look for in a
// candidate directory.
const manifestFile = "agent.json"

type manifest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Command     string   `json:"command"`
	Args        []string `json:"args"`
}

// Loader implements workload.Loader for external-process agent
// directories.
type Loader struct {
	logger telemetry.Logger

	mu        sync.Mutex
	manifests map[string]manifest // directory path -> manifest
}

// New constructs a Loader.
func New(logger telemetry.Logger) *Loader {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Loader{logger: logger, manifests: make(map[string]manifest)}
}

func (l *Loader) Format() workload.Format { return workload.FormatProcess }

// Identify claims a directory containing a manifestFile.
func (l *Loader) Identify(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(path, manifestFile))
	return err == nil
}

func (l *Loader) Load(path string) (workload.Definition, error) {
	data, err := os.ReadFile(filepath.Join(path, manifestFile))
	if err != nil {
		return workload.Definition{}, fmt.Errorf("procworkload: read manifest in %s: %w", path, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return workload.Definition{}, fmt.Errorf("procworkload: parse manifest in %s: %w", path, err)
	}
	if m.Name == "" || m.Command == "" {
		return workload.Definition{}, fmt.Errorf("procworkload: manifest in %s missing name or command", path)
	}

	l.mu.Lock()
	l.manifests[path] = m
	l.mu.Unlock()

	return workload.Definition{
		Name:        m.Name,
		Description: m.Description,
		Format:      workload.FormatProcess,
		Path:        path,
	}, nil
}

// Build prepares a runnable workload for the manifest's command without
// starting any process: each RunAsync call spawns its own subprocess, so a
// discovered-but-never-run process workload holds no subprocess open.
func (l *Loader) Build(ctx context.Context, def workload.Definition) (workload.Workload, error) {
	l.mu.Lock()
	m, ok := l.manifests[def.Path]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("procworkload: no manifest loaded for %q", def.Path)
	}
	return &processWorkload{manifest: m, dir: def.Path, logger: l.logger}, nil
}

type processWorkload struct {
	manifest manifest
	dir      string
	logger   telemetry.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

type eventFrame struct {
	Author   string          `json:"author"`
	Text     string          `json:"text,omitempty"`
	Final    bool            `json:"final,omitempty"`
	Escalate bool            `json:"escalate,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// RunAsync spawns a fresh subprocess per call — a process workload holds
// no conversational state of its own across turns beyond what session
// carries, mirroring how agentfactory.Agent.Run seeds a fresh message list
// every call rather than keeping a live process per session.
func (w *processWorkload) RunAsync(ctx context.Context, session *model.Session, newMessage string) (<-chan model.Event, <-chan error) {
	events := make(chan model.Event, 4)
	errc := make(chan error, 1)

	cmd := exec.CommandContext(ctx, w.manifest.Command, w.manifest.Args...)
	cmd.Dir = w.dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		close(events)
		errc <- fmt.Errorf("procworkload: stdin pipe: %w", err)
		return events, errc
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		close(events)
		errc <- fmt.Errorf("procworkload: stdout pipe: %w", err)
		return events, errc
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		close(events)
		errc <- fmt.Errorf("procworkload: start %q: %w", w.manifest.Command, err)
		return events, errc
	}

	w.mu.Lock()
	w.cmd = cmd
	w.mu.Unlock()

	request := map[string]any{"new_message": newMessage, "session_id": sessionID(session)}
	if err := writeFrame(stdin, request); err != nil {
		close(events)
		errc <- fmt.Errorf("procworkload: write request: %w", err)
		return events, errc
	}

	go func() {
		defer close(events)
		defer close(errc)
		reader := bufio.NewReader(stdout)
		for {
			body, err := readFrame(reader)
			if err != nil {
				if err != io.EOF {
					errc <- fmt.Errorf("procworkload: %q: %w", w.manifest.Name, err)
				}
				return
			}
			var frame eventFrame
			if err := json.Unmarshal(body, &frame); err != nil {
				w.logger.Warn(ctx, "procworkload: malformed event frame", "agent", w.manifest.Name, "error", err)
				continue
			}
			events <- toModelEvent(frame)
			if frame.Final {
				return
			}
		}
	}()

	return events, errc
}

func toModelEvent(f eventFrame) model.Event {
	ev := model.Event{Author: f.Author, IsFinal: f.Final, Escalate: f.Escalate}
	if f.Text != "" {
		ev.Content = []model.Part{model.TextPart{Text: f.Text}}
	}
	return ev
}

func sessionID(s *model.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// Close kills the most recently spawned subprocess, if any is still
// running. Safe to call even if RunAsync was never called.
func (w *processWorkload) Close() error {
	w.mu.Lock()
	cmd := w.cmd
	w.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()
	return cmd.Wait()
}

func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("procworkload: invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("procworkload: missing Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
