package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// FileSink é o log local append-only (JSONL) de escritas que falharam.
// Nada aqui apaga ou reescreve linhas; a reconciliação é feita fora do serviço.
type FileSink struct {
	Path string

	mu  sync.Mutex
	now func() time.Time
}

// NewFileSink cria o sink para o caminho informado
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path, now: time.Now}
}

// Append cria o diretório se necessário e grava uma linha {timestamp, player}
func (s *FileSink) Append(_ context.Context, p events.PlayerResult) error {
	line, err := json.Marshal(Record{Timestamp: s.now(), Player: p})
	if err != nil {
		return fmt.Errorf("marshal fallback record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create fallback dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open fallback file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write fallback file: %w", err)
	}
	return f.Sync()
}
