package app

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// audioSampleRate is the PCM sample rate handed to ebiten's audio context.
// It matches the APU's default target rate (see apu.New).
const audioSampleRate = 44100

// audioBufferCapacity bounds how many PCM byte pairs the stream holds
// before it starts dropping the oldest samples, so a stalled player can
// never make the buffer grow without limit.
const audioBufferCapacity = audioSampleRate / 2 * 4 // ~0.5s of 16-bit stereo

// AudioStream adapts the APU's float32 mono samples into the 16-bit
// stereo PCM byte stream ebiten's audio.Player reads from. Writes come
// from the emulation loop; reads come from ebiten's mixer goroutine, so
// every access is guarded by mu.
type AudioStream struct {
	mu  sync.Mutex
	buf []byte
}

// NewAudioStream creates an empty audio stream.
func NewAudioStream() *AudioStream {
	return &AudioStream{
		buf: make([]byte, 0, audioBufferCapacity),
	}
}

// Push appends APU samples to the stream, converting each mono float32
// sample (-1.0 to 1.0) into a 16-bit stereo PCM frame. Oldest bytes are
// dropped if the buffer is already at capacity, favoring fresh audio over
// an ever-growing backlog.
func (s *AudioStream) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}

		v := int16(sample * 32767.0)
		lo := byte(v)
		hi := byte(v >> 8)

		// Left and right channels carry the same mono sample.
		s.buf = append(s.buf, lo, hi, lo, hi)
	}

	if overflow := len(s.buf) - audioBufferCapacity; overflow > 0 {
		s.buf = s.buf[overflow:]
	}
}

// Read implements io.Reader for audio.Player. It returns silence rather
// than blocking when no samples are buffered, so the mixer never stalls
// waiting on the emulation loop.
func (s *AudioStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(p, s.buf)
	s.buf = s.buf[n:]

	if n < len(p) {
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		n = len(p)
	}

	return n, nil
}

// setupAudio creates the ebiten audio context and player backing this
// application's audio output. It is a no-op in headless mode, where
// there is no host audio device to drive.
func (app *Application) setupAudio() error {
	if app.headless || !app.config.Audio.Enabled {
		return nil
	}

	app.audioContext = audio.NewContext(audioSampleRate)
	app.audioStream = NewAudioStream()

	player, err := app.audioContext.NewPlayer(app.audioStream)
	if err != nil {
		return err
	}
	player.SetVolume(float64(app.config.Audio.Volume))
	player.Play()
	app.audioPlayer = player

	app.bus.SetAudioSampleRate(audioSampleRate)

	return nil
}

// feedAudio drains freshly generated APU samples into the audio stream.
// Called once per emulated frame from the main loop.
func (app *Application) feedAudio() {
	if app.audioStream == nil {
		return
	}
	app.audioStream.Push(app.emulator.GetAudioSamples())
}
