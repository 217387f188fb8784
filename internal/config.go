package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	// HistoryLimit caps the join reply and REST history; nil means unbounded.
	HistoryLimit *int `env:"HISTORY_LIMIT"`

	SendBufferSize     int           `env:"SEND_BUFFER_SIZE,required=true"`
	PresenceBufferSize int           `env:"PRESENCE_BUFFER_SIZE,required=true"`
	IndexBatchSize     int           `env:"INDEX_BATCH_SIZE,required=true"`
	IndexFlushInterval time.Duration `env:"INDEX_FLUSH_INTERVAL,required=true"`
	SearchResultLimit  int           `env:"SEARCH_RESULT_LIMIT,required=true"`

	EventRatePerSecond float64       `env:"EVENT_RATE_PER_SECOND,required=true"`
	EventBurst         int           `env:"EVENT_BURST,required=true"`
	MaxMessageSize     int64         `env:"MAX_MESSAGE_SIZE,required=true"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT,required=true"`
	PongTimeout        time.Duration `env:"PONG_TIMEOUT,required=true"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`

	CensoredWordsFile string `env:"CENSORED_WORDS_FILE"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,required=true"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
