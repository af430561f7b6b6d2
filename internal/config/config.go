package config

// Job file loading and validation for mbcompose

import (
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/mbcompose/internal/compose"
	"github.com/tturner/mbcompose/internal/errors"
	"github.com/tturner/mbcompose/internal/modbus/codec"
	"github.com/tturner/mbcompose/internal/transport"
)

// ReadFunction names the memory area a read job targets.
type ReadFunction string

const (
	ReadCoils            ReadFunction = "coils"
	ReadDiscreteInputs   ReadFunction = "discrete_inputs"
	ReadHoldingRegisters ReadFunction = "holding_registers"
	ReadInputRegisters   ReadFunction = "input_registers"
)

// WriteFunction names the memory area a write job targets.
type WriteFunction string

const (
	WriteCoils     WriteFunction = "coils"
	WriteRegisters WriteFunction = "registers"
)

// Defaults applies to every job and address that does not say otherwise.
type Defaults struct {
	URI        string `yaml:"uri"`
	UnitID     int    `yaml:"unitId"`
	Endianness string `yaml:"endianness,omitempty"` // e.g. "big_endian_low_word_first"
}

// ReadJob is one group of addresses read with the same function.
type ReadJob struct {
	Function  ReadFunction     `yaml:"function"`
	URI       string           `yaml:"uri,omitempty"`
	UnitID    *int             `yaml:"unitId,omitempty"`
	Addresses []compose.Record `yaml:"addresses"`
}

// WriteJob is one group of addresses written with the same function.
type WriteJob struct {
	Function  WriteFunction    `yaml:"function"`
	URI       string           `yaml:"uri,omitempty"`
	UnitID    *int             `yaml:"unitId,omitempty"`
	Addresses []compose.Record `yaml:"addresses"`
}

// TransportConfig tunes device I/O.
type TransportConfig struct {
	TimeoutMs        int    `yaml:"timeout_ms,omitempty"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms,omitempty"`
	RetryAttempts    int    `yaml:"retry_attempts,omitempty"`
	RetryDelayMs     int    `yaml:"retry_delay_ms,omitempty"`
	MaxOutstanding   int    `yaml:"max_outstanding,omitempty"`
	Backend          string `yaml:"backend,omitempty"` // "native" (default) or "goburrow"
}

// Config is a job file.
type Config struct {
	Defaults  Defaults        `yaml:"defaults"`
	Transport TransportConfig `yaml:"transport,omitempty"`
	Reads     []ReadJob       `yaml:"reads,omitempty"`
	Writes    []WriteJob      `yaml:"writes,omitempty"`
}

// Backend names.
const (
	BackendNative   = "native"
	BackendGoburrow = "goburrow"
)

// CreateDefaultConfig returns a small job that reads a few holding
// registers from a local device.
func CreateDefaultConfig() *Config {
	addr := func(a int) *int { return &a }
	cfg := &Config{
		Defaults: Defaults{
			URI:        "tcp://127.0.0.1:502",
			UnitID:     1,
			Endianness: codec.BigEndianLowWordFirst.String(),
		},
		Reads: []ReadJob{
			{
				Function: ReadHoldingRegisters,
				Addresses: []compose.Record{
					{Address: addr(0), Type: "uint16", Name: "status"},
					{Address: addr(1), Type: "float", Name: "temperature"},
				},
			},
			{
				Function: ReadCoils,
				Addresses: []compose.Record{
					{Address: addr(0), Name: "running"},
				},
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// WriteDefaultConfig writes CreateDefaultConfig to path.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// Load reads and validates the job file at path. With autoCreate a
// missing file is replaced by the default job first.
func Load(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if !autoCreate {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		if err := WriteDefaultConfig(path); err != nil {
			return nil, errors.WrapConfigError(err, path)
		}
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("read created config file: %w", err), path)
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapConfigError(err, path)
	}
	return cfg, nil
}

// Parse decodes a job file, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	d := transport.DefaultOptions()
	t := &cfg.Transport
	if t.TimeoutMs == 0 {
		t.TimeoutMs = int(d.Timeout / time.Millisecond)
	}
	if t.ConnectTimeoutMs == 0 {
		t.ConnectTimeoutMs = int(d.ConnectTimeout / time.Millisecond)
	}
	if t.RetryAttempts == 0 {
		t.RetryAttempts = d.RetryAttempts
	}
	if t.RetryDelayMs == 0 {
		t.RetryDelayMs = int(d.RetryDelay / time.Millisecond)
	}
	if t.MaxOutstanding == 0 {
		t.MaxOutstanding = d.MaxOutstanding
	}
	if t.Backend == "" {
		t.Backend = BackendNative
	}
}

// Validate checks the job file's structure. Address-level problems such
// as overlaps or quantity limits are reported when requests are built.
func Validate(cfg *Config) error {
	if len(cfg.Reads) == 0 && len(cfg.Writes) == 0 {
		return fmt.Errorf("job file has no reads or writes")
	}
	if err := validateUnitID(cfg.Defaults.UnitID, "defaults"); err != nil {
		return err
	}
	if cfg.Defaults.Endianness != "" {
		if _, err := codec.ParseEndianness(cfg.Defaults.Endianness); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
	}
	if cfg.Transport.TimeoutMs < 0 || cfg.Transport.ConnectTimeoutMs < 0 || cfg.Transport.RetryDelayMs < 0 {
		return fmt.Errorf("transport: durations must be non-negative")
	}
	if cfg.Transport.RetryAttempts < 0 {
		return fmt.Errorf("transport: retry_attempts must be non-negative")
	}
	switch cfg.Transport.Backend {
	case BackendNative, BackendGoburrow:
	default:
		return fmt.Errorf("transport: unknown backend %q (want %s or %s)", cfg.Transport.Backend, BackendNative, BackendGoburrow)
	}

	for i, job := range cfg.Reads {
		section := fmt.Sprintf("reads[%d]", i)
		switch job.Function {
		case ReadCoils, ReadDiscreteInputs, ReadHoldingRegisters, ReadInputRegisters:
		default:
			return fmt.Errorf("%s: unknown function %q", section, job.Function)
		}
		if err := validateJob(section, job.URI, cfg.Defaults.URI, job.UnitID, len(job.Addresses)); err != nil {
			return err
		}
	}
	for i, job := range cfg.Writes {
		section := fmt.Sprintf("writes[%d]", i)
		switch job.Function {
		case WriteCoils, WriteRegisters:
		default:
			return fmt.Errorf("%s: unknown function %q", section, job.Function)
		}
		if err := validateJob(section, job.URI, cfg.Defaults.URI, job.UnitID, len(job.Addresses)); err != nil {
			return err
		}
		for j, r := range job.Addresses {
			if r.Value == nil {
				return fmt.Errorf("%s.addresses[%d]: value is required", section, j)
			}
		}
	}
	return nil
}

func validateJob(section, uri, defURI string, unitID *int, addresses int) error {
	if addresses == 0 {
		return fmt.Errorf("%s: no addresses", section)
	}
	if uri == "" {
		uri = defURI
	}
	if uri == "" {
		return fmt.Errorf("%s: no uri and no default uri", section)
	}
	if _, err := transport.ParseURI(uri); err != nil {
		return fmt.Errorf("%s: %w", section, err)
	}
	if unitID != nil {
		return validateUnitID(*unitID, section)
	}
	return nil
}

func validateUnitID(id int, section string) error {
	if id < 0 || id > 255 {
		return fmt.Errorf("%s: unitId %d outside 0-255", section, id)
	}
	return nil
}

// TransportOptions converts the transport section.
func (c *Config) TransportOptions() transport.Options {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return transport.Options{
		Timeout:        ms(c.Transport.TimeoutMs),
		ConnectTimeout: ms(c.Transport.ConnectTimeoutMs),
		RetryAttempts:  c.Transport.RetryAttempts,
		RetryDelay:     ms(c.Transport.RetryDelayMs),
		MaxOutstanding: c.Transport.MaxOutstanding,
	}
}

// Endianness returns the job-wide default layout, Auto when unset.
func (c *Config) Endianness() codec.Endianness {
	e, err := codec.ParseEndianness(c.Defaults.Endianness)
	if err != nil {
		return codec.Auto
	}
	return e
}

func (c *Config) target(uri string, unitID *int) (string, uint8) {
	if uri == "" {
		uri = c.Defaults.URI
	}
	id := c.Defaults.UnitID
	if unitID != nil {
		id = *unitID
	}
	return uri, uint8(id)
}

// withEndianness fills in the job-wide layout on records that name none.
func (c *Config) withEndianness(records []compose.Record) []compose.Record {
	if c.Defaults.Endianness == "" {
		return records
	}
	out := make([]compose.Record, len(records))
	for i, r := range records {
		if r.Endianness == "" {
			r.Endianness = c.Defaults.Endianness
		}
		out[i] = r
	}
	return out
}

// ReadRequests composes every read job. Errors from all jobs are joined.
func (c *Config) ReadRequests() ([]compose.ReadRequest, error) {
	var (
		reqs []compose.ReadRequest
		errs []error
	)
	for i, job := range c.Reads {
		uri, unitID := c.target(job.URI, job.UnitID)
		records := c.withEndianness(job.Addresses)

		var built []compose.ReadRequest
		var err error
		switch job.Function {
		case ReadCoils:
			built, err = compose.NewReadCoilsBuilder(uri, unitID).AddRecords(job.Addresses...).Build()
		case ReadDiscreteInputs:
			built, err = compose.NewReadInputDiscretesBuilder(uri, unitID).AddRecords(job.Addresses...).Build()
		case ReadHoldingRegisters:
			built, err = compose.NewReadHoldingRegistersBuilder(uri, unitID).AddRecords(records...).Build()
		case ReadInputRegisters:
			built, err = compose.NewReadInputRegistersBuilder(uri, unitID).AddRecords(records...).Build()
		default:
			err = fmt.Errorf("unknown function %q", job.Function)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reads[%d]: %w", i, err))
			continue
		}
		reqs = append(reqs, built...)
	}
	if err := stderrors.Join(errs...); err != nil {
		return nil, err
	}
	return reqs, nil
}

// WriteRequests composes every write job. Errors from all jobs are joined.
func (c *Config) WriteRequests() ([]compose.WriteRequest, error) {
	var (
		reqs []compose.WriteRequest
		errs []error
	)
	for i, job := range c.Writes {
		uri, unitID := c.target(job.URI, job.UnitID)

		var built []compose.WriteRequest
		var err error
		switch job.Function {
		case WriteCoils:
			built, err = compose.NewWriteCoilsBuilder(uri, unitID).AddRecords(job.Addresses...).Build()
		case WriteRegisters:
			built, err = compose.NewWriteRegistersBuilder(uri, unitID).
				Endianness(c.Endianness()).
				AddRecords(job.Addresses...).
				Build()
		default:
			err = fmt.Errorf("unknown function %q", job.Function)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("writes[%d]: %w", i, err))
			continue
		}
		reqs = append(reqs, built...)
	}
	if err := stderrors.Join(errs...); err != nil {
		return nil, err
	}
	return reqs, nil
}
