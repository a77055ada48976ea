package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	InteractRange      int `json:"interact_range"`
	ChatRange          int `json:"chat_range"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	Objects    []ObjectV1    `json:"objects"`
	Players    []PlayerV1    `json:"players"`
	Switches   []SwitchV1    `json:"switches,omitempty"`
	Belts      []BeltV1      `json:"belts,omitempty"`
	Packages   []PackageV1   `json:"packages,omitempty"`
	Explosives []ExplosiveV1 `json:"explosives,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextPlayer uint64 `json:"next_player"`
	NextObject uint64 `json:"next_object"`
}

type ObjectV1 struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Name    string  `json:"name"`
	Pos     [2]int  `json:"pos"`
	Visible bool    `json:"visible"`
	Holder  string  `json:"holder,omitempty"`
	Slot    string  `json:"slot,omitempty"`
	Count   int     `json:"count"`
	Scale   float64 `json:"scale"`

	Pickupable bool   `json:"pickupable"`
	Pushable   bool   `json:"pushable"`
	Physics    bool   `json:"physics"`
	Door       bool   `json:"door"`
	Emitter    bool   `json:"emitter"`
	Tool       string `json:"tool,omitempty"`
}

type PlayerV1 struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Pos         [2]int            `json:"pos"`
	Intent      string            `json:"intent"`
	ActiveHand  string            `json:"active_hand"`
	Slots       map[string]string `json:"slots,omitempty"`
	ResumeToken string            `json:"resume_token"`

	Progress *ProgressV1 `json:"progress,omitempty"`
}

// ProgressV1 is a pending timed action together with the request that started it.
type ProgressV1 struct {
	Kind       string   `json:"kind"`
	Ref        string   `json:"ref"`
	ReqKind    string   `json:"req_kind"`
	Target     string   `json:"target,omitempty"`
	HandObject string   `json:"hand_object,omitempty"`
	UsedObject string   `json:"used_object,omitempty"`
	TargetPos  [2]int   `json:"target_pos"`
	Intent     string   `json:"intent"`
	StartPos   [2]int   `json:"start_pos"`
	DoneTick   uint64   `json:"done_tick"`
	Masters    []string `json:"masters,omitempty"`
}

type SwitchV1 struct {
	ID                string   `json:"id"`
	State             int      `json:"state"`
	PrevMove          int      `json:"prev_move"`
	Speed             float64  `json:"speed"`
	RedriveEveryTicks int      `json:"redrive_every_ticks"`
	NextRedrive       uint64   `json:"next_redrive,omitempty"`
	Belts             []string `json:"belts,omitempty"`
}

type BeltV1 struct {
	ID       string  `json:"id"`
	Dir      [2]int  `json:"dir"`
	Rate     float64 `json:"rate"`
	Progress float64 `json:"progress"`
}

type PackageV1 struct {
	ID             string `json:"id"`
	Type           int    `json:"type"`
	Sprite         int    `json:"sprite"`
	Size           int    `json:"size"`
	ContentID      string `json:"content_id,omitempty"`
	DefaultContent string `json:"default_content,omitempty"`
}

type ExplosiveV1 struct {
	ID         string  `json:"id"`
	Armed      bool    `json:"armed"`
	OnObject   bool    `json:"on_object"`
	AttachedTo string  `json:"attached_to,omitempty"`
	Emitter    string  `json:"emitter,omitempty"`
	Scale      float64 `json:"scale"`
	CanPickup  bool    `json:"can_pickup"`
	Pushable   bool    `json:"pushable"`
	DetonateAt uint64  `json:"detonate_at,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the path of the highest-tick snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if err != nil {
		return "", err
	}
	best := ""
	var bestTick uint64
	for _, p := range matches {
		h, err := ReadHeader(p)
		if err != nil {
			continue
		}
		if best == "" || h.Tick > bestTick {
			best, bestTick = p, h.Tick
		}
	}
	return best, nil
}

// FileName is the conventional name of a snapshot taken at tick.
func FileName(tick uint64) string { return fmt.Sprintf("%d.snap.zst", tick) }
