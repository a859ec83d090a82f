package lockin

/*------------------------------------------------------------------
 *
 * Purpose:	Read the settings file: one "Key value" pair per line,
 *		blank lines and lines starting with # ignored.
 *
 * Description:	A line-at-a-time bufio.Scanner loop dispatching on the
 *		first token of each line -- this settings file is flat
 *		key/value rather than a many-keyword command grammar, so
 *		each line is split at its first space into a key and a
 *		value (the rest of the line, trimmed).
 *		If FBL/points is never given, it is derived from FBL/max_rate
 *		and FBL/frequency once the whole file has been scanned.
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every recognized settings-file key, with the documented
// defaults already applied.
type Config struct {
	DaqChannels        int
	DaqDummy           bool
	DaqInputChannels   []string
	DaqOutputChannels  []string
	DaqOutputClock     string
	DaqOutputClockChan string
	DaqInputClockChan  string

	Frequency float64
	Points    int
	MaxRate   float64
	Ki        float64
	Kp        float64
	Averaging float64

	TcpEnabled bool
	TcpPort    int

	pointsSet bool
}

// DefaultConfig returns the built-in settings-file defaults.
func DefaultConfig() *Config {
	return &Config{
		DaqChannels: 8,
		DaqDummy:    true,
		Frequency:   17.76,
		Points:      500,
		Ki:          0.01,
		Kp:          0.0,
		Averaging:   1,
		TcpEnabled:  false,
		TcpPort:     0,
	}
}

// LoadConfig reads path and applies recognized keys on top of
// DefaultConfig. Any malformed value is a fatal ConfigError.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("opening %s: %s", path, err)}
	}
	defer f.Close()

	cfg := DefaultConfig()

	scanner := bufio.NewScanner(f)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.SplitN(text, " ", 2)
		if len(fields) != 2 {
			return nil, &ConfigError{Msg: fmt.Sprintf("line %d: expected \"key value\"", line)}
		}

		key := fields[0]
		value := strings.TrimSpace(fields[1])

		if err := cfg.apply(key, value); err != nil {
			return nil, &ConfigError{Key: key, Msg: fmt.Sprintf("line %d: %s", line, err)}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("reading %s: %s", path, err)}
	}

	if !cfg.pointsSet && cfg.MaxRate > 0 {
		cfg.Points = int(cfg.MaxRate/cfg.Frequency*0.099) * 10
	}

	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	switch key {
	case "DAQ/channels":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}

		c.DaqChannels = n

	case "DAQ/dummy":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		c.DaqDummy = b

	case "DAQ/input_channels":
		c.DaqInputChannels = strings.Split(value, ",")

	case "DAQ/output_channels":
		c.DaqOutputChannels = strings.Split(value, ",")

	case "DAQ/output_clock":
		c.DaqOutputClock = value

	case "DAQ/output_clock_channel":
		c.DaqOutputClockChan = value

	case "DAQ/input_clock_channel":
		c.DaqInputClockChan = value

	case "FBL/frequency":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}

		c.Frequency = v

	case "FBL/points":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}

		c.Points = n
		c.pointsSet = true

	case "FBL/max_rate":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}

		c.MaxRate = v

	case "FBL/ki":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}

		c.Ki = v

	case "FBL/kp":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}

		c.Kp = v

	case "FBL/averaging":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}

		c.Averaging = v

	case "TCP/enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		c.TcpEnabled = b

	case "TCP/port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}

		c.TcpPort = n

	default:
		return fmt.Errorf("unrecognized key %q", key)
	}

	return nil
}
