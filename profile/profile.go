// Package profile loads API credentials from the local profile store: a
// .tonup config file in the home directory or CWD, with TON_* environment
// overrides.
package profile

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Credentials is the full user-auth credential set. App-auth needs only the
// consumer pair; the token pair may then be empty.
type Credentials struct {
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	Token          string `mapstructure:"token"`
	Secret         string `mapstructure:"secret"`
}

var settingKeys = []string{"consumer_key", "consumer_secret", "token", "secret"}

// Load reads the profile from disk and environment.
func Load() (Credentials, error) {
	v := viper.New()
	v.SetConfigName(".tonup")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")
	return LoadFrom(v)
}

// LoadFrom reads credentials from a prepared viper instance. Split from Load
// so tests can point it at a fixture.
func LoadFrom(v *viper.Viper) (Credentials, error) {
	v.SetEnvPrefix("TON")
	for _, key := range settingKeys {
		// AutomaticEnv alone does not surface env values through Unmarshal;
		// each key is bound explicitly.
		if err := v.BindEnv(key); err != nil {
			return Credentials{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Credentials{}, fmt.Errorf("read profile: %w", err)
		}
		// No profile file is fine as long as the environment fills the gaps.
	}

	var creds Credentials
	if err := v.Unmarshal(&creds); err != nil {
		return Credentials{}, fmt.Errorf("parse profile: %w", err)
	}
	return creds, nil
}

// RequireUserAuth verifies the full OAuth1 credential set is present.
func (c Credentials) RequireUserAuth() error {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" || c.Token == "" || c.Secret == "" {
		return errors.New("user auth requires consumer_key, consumer_secret, token and secret in the profile")
	}
	return nil
}

// RequireAppAuth verifies the consumer pair needed for the bearer-token
// exchange is present.
func (c Credentials) RequireAppAuth() error {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return errors.New("app auth requires consumer_key and consumer_secret in the profile")
	}
	return nil
}
