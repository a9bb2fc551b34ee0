package config

import "time"

// Editor configures the connection to a sync editor.
type Editor struct {
	Address            string        `yaml:"address"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	PollTimeout        time.Duration `yaml:"poll_timeout"`
	MaxMessagesPerTick int           `yaml:"max_messages_per_tick"`
}

// Tempo maps playback time onto rows.
type Tempo struct {
	BPM         float64 `yaml:"bpm"`
	RowsPerBeat int     `yaml:"rows_per_beat"`
}

// Playback configures the host frame loop.
type Playback struct {
	FrameTarget      time.Duration `yaml:"frame_target"`
	StandalonePaused bool          `yaml:"standalone_paused"`
	TracksDir        string        `yaml:"tracks_dir"`
}

// Render configures the PNG frame renderer. It is off while FramesDir is empty.
type Render struct {
	FramesDir string `yaml:"frames_dir,omitempty"`
	Every     int    `yaml:"every"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
}

// Monitor configures the websocket monitor. It is off while Address is empty.
type Monitor struct {
	Address string `yaml:"address,omitempty"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Config represents the tracksync.yaml file.
type Config struct {
	Editor   Editor   `yaml:"editor"`
	Tempo    Tempo    `yaml:"tempo"`
	Tracks   []string `yaml:"tracks"`
	Playback Playback `yaml:"playback"`
	Render   Render   `yaml:"render"`
	Monitor  Monitor  `yaml:"monitor"`
	Log      Log      `yaml:"log"`
}
