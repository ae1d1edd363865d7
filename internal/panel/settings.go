package panel

import (
	"time"

	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/storage/kv"
)

const (
	keyFlashDelay  = "flash_delay_ms"
	keyGlobalTempo = "global_tempo"
)

// Settings are the panel-wide values persisted in a kv bucket.
type Settings struct {
	bucket     kv.Bucket
	flashDelay time.Duration
}

// SettingsView is the API form of Settings.
type SettingsView struct {
	FlashDelayMS int `json:"flash_delay_ms"`
	GlobalTempo  int `json:"global_tempo"`
}

// NewSettings reads and writes settings in bucket. defaultFlashDelay is
// used until a flash delay is stored.
func NewSettings(bucket kv.Bucket, defaultFlashDelay time.Duration) *Settings {
	return &Settings{bucket: bucket, flashDelay: defaultFlashDelay}
}

// FlashDelay returns the stored delay between a scene flash and its
// settle. It is not clamped here.
func (s *Settings) FlashDelay() time.Duration {
	ms := kv.LoadInt(s.bucket, keyFlashDelay, int(s.flashDelay/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// SetFlashDelay stores the flash delay.
func (s *Settings) SetFlashDelay(d time.Duration) error {
	return s.bucket.Store(keyFlashDelay, int(d/time.Millisecond), 0)
}

// GlobalTempo returns the tempo applied to tempo-locked groups.
func (s *Settings) GlobalTempo() int {
	return kv.LoadInt(s.bucket, keyGlobalTempo, group.DefaultTempo)
}

// SetGlobalTempo stores the global tempo.
func (s *Settings) SetGlobalTempo(t int) error {
	return s.bucket.Store(keyGlobalTempo, t, 0)
}

// View returns the current settings.
func (s *Settings) View() SettingsView {
	return SettingsView{
		FlashDelayMS: int(s.FlashDelay() / time.Millisecond),
		GlobalTempo:  s.GlobalTempo(),
	}
}
