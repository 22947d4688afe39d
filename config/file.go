package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys understood in a config file.  The CamelCase names match the
// venue connection sheets ({"Pricing": {"SocketConnectHost": ...}});
// the snake_case names cover settings those sheets do not carry.
// Viper matches keys case-insensitively.
const (
	keyHost     = "SocketConnectHost"
	keyPort     = "SocketConnectPort"
	keyUseSSL   = "SocketUseSSL"
	keySender   = "SenderCompID"
	keyTarget   = "TargetCompID"
	keyUsername = "LoginUsername"
	keyPassword = "LoginPassword"

	keyDelimiter       = "delimiter"
	keyGenerateIDs     = "generate_ids"
	keyTLSVerify       = "tls_verify"
	keyRequestTimeout  = "request_timeout"
	keyConnectTimeout  = "connect_timeout"
	keyConnectAttempts = "connect_attempts"
	keyTunnel          = "tunnel"
	keySSHKey          = "ssh_key"
	keySourcePort      = "source_port"
	keyHTTPAddr        = "http_addr"
	keyStreamInterval  = "stream_interval"
)

// LoadFile overlays the config file at path onto cfg.  The format is
// taken from the extension (JSON, YAML, TOML, ...).  When section is
// set, keys are read from that top-level block, e.g. "Pricing" or
// "Trading"; a file with no such block is an error.
func LoadFile(path, section string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if section != "" {
		sub := v.Sub(section)
		if sub == nil {
			return fmt.Errorf("config %s: no %q section", path, section)
		}
		v = sub
	}
	return apply(v, cfg)
}

func apply(v *viper.Viper, cfg *Config) error {
	str := func(dst *string, key string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	flag := func(dst *bool, key string) {
		if v.IsSet(key) {
			*dst = parseBool(v.GetString(key))
		}
	}
	dur := func(dst *time.Duration, key string) error {
		if !v.IsSet(key) {
			return nil
		}
		d, ok := parseDuration(v.GetString(key))
		if !ok {
			return fmt.Errorf("%s: invalid duration %q", key, v.GetString(key))
		}
		*dst = d
		return nil
	}

	str(&cfg.Host, keyHost)
	if v.IsSet(keyPort) {
		port := v.GetInt(keyPort)
		if port == 0 {
			return fmt.Errorf("%s: invalid port %q", keyPort, v.GetString(keyPort))
		}
		cfg.Port = port
	}
	flag(&cfg.UseTLS, keyUseSSL)
	str(&cfg.SenderCompID, keySender)
	str(&cfg.TargetCompID, keyTarget)
	str(&cfg.Username, keyUsername)
	str(&cfg.Password, keyPassword)

	str(&cfg.Delimiter, keyDelimiter)
	flag(&cfg.GenerateIDs, keyGenerateIDs)
	flag(&cfg.TLSVerify, keyTLSVerify)
	if v.IsSet(keyConnectAttempts) {
		cfg.ConnectAttempts = v.GetInt(keyConnectAttempts)
	}
	if v.IsSet(keySourcePort) {
		cfg.SourcePort = v.GetInt(keySourcePort)
	}
	str(&cfg.TunnelSpec, keyTunnel)
	str(&cfg.SSHKeyPath, keySSHKey)
	str(&cfg.HTTPAddr, keyHTTPAddr)

	for key, dst := range map[string]*time.Duration{
		keyRequestTimeout: &cfg.RequestTimeout,
		keyConnectTimeout: &cfg.ConnectTimeout,
		keyStreamInterval: &cfg.StreamInterval,
	} {
		if err := dur(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// Sections lists the top-level blocks of the file at path that look
// like session definitions, spelled as the file spells them.
func Sections(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	// Viper lowercases every key, so take the spelling from the file.
	names, err := topLevelKeys(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var out []string
	for _, k := range v.AllKeys() {
		parts := strings.SplitN(k, ".", 2)
		if len(parts) == 2 && strings.EqualFold(parts[1], keyHost) {
			name := parts[0]
			if orig, ok := names[name]; ok {
				name = orig
			}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// topLevelKeys maps each lowercased top-level key of the file to its
// original spelling.  Formats it cannot decode yield an empty map.
func topLevelKeys(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys []string
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		for k := range raw {
			keys = append(keys, k)
		}
	case "yaml", "yml":
		var raw map[string]yaml.Node
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		for k := range raw {
			keys = append(keys, k)
		}
	case "toml":
		var raw map[string]toml.Primitive
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
		for k := range raw {
			keys = append(keys, k)
		}
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[strings.ToLower(k)] = k
	}
	return out, nil
}
