package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/llm"
)

func writeConfig(dir, data string) {
	Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600)).To(Succeed())
}

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(tmpDir, `version = 0

[storage]
driver = "sqlite"
sqlite_path = "/tmp/scribe.sqlite"

[server]
listen = ":9090"

[client]
server_target = "http://myhost:9090"
owner = "alice"

[provider]
name = "deepseek"
model = "deepseek-coder"
scene = "code"
temperature = 0.2
max_tokens = 512
strip_citations = true

[events]
driver = "kafka"
brokers = "k1:9092, k2:9092"
topic = "chats"

[media]
inbox = "/tmp/recordings"
slides_theme = "blue"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/scribe.sqlite"))
			Expect(cfg.Server.Listen).To(Equal(":9090"))
			Expect(cfg.Client.ServerTarget).To(Equal("http://myhost:9090"))
			Expect(cfg.Client.Owner).To(Equal("alice"))
			Expect(cfg.Provider.Name).To(Equal("deepseek"))
			Expect(cfg.Provider.Model).To(Equal("deepseek-coder"))
			Expect(cfg.Provider.Scene).To(Equal("code"))
			Expect(cfg.Provider.Temperature).To(HaveValue(Equal(0.2)))
			Expect(cfg.Provider.TopP).To(BeNil())
			Expect(cfg.Provider.MaxTokens).To(HaveValue(Equal(512)))
			Expect(cfg.Provider.StripCitations).To(BeTrue())
			Expect(cfg.Events.Driver).To(Equal("kafka"))
			Expect(cfg.Events.BrokerList()).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.Events.Topic).To(Equal("chats"))
			Expect(cfg.Media.Inbox).To(Equal("/tmp/recordings"))
			Expect(cfg.Media.SlidesTheme).To(Equal("blue"))
			Expect(cfg.Media.SlidesEndpoint).To(BeEmpty())

			// unset fields fall back to defaults
			Expect(cfg.Media.TranscriptionModel).To(Equal("whisper-1"))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(tmpDir, "[server\nlisten = ")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("returns error for unsupported config version", func() {
			writeConfig(tmpDir, "version = 7\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SaveConfig", func() {
		It("round trips through disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Client.Owner = "bob"
			cfg.Provider.Name = "moonshot"
			temp := 0.5
			cfg.Provider.Temperature = &temp
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets and gets a string key", func() {
			Expect(c.SetConfigValue("provider.name", "yi")).To(Succeed())
			Expect(c.GetConfigValue("provider.name")).To(Equal("yi"))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("client.owner", "carol")).To(Succeed())
			Expect(c.SetConfigValue("server.listen", ":7000")).To(Succeed())

			Expect(c.GetConfigValue("client.owner")).To(Equal("carol"))
			Expect(c.GetConfigValue("server.listen")).To(Equal(":7000"))
		})

		It("sets numeric keys and clears them with an empty value", func() {
			Expect(c.SetConfigValue("provider.top_p", "0.85")).To(Succeed())
			Expect(c.SetConfigValue("provider.max_tokens", "2048")).To(Succeed())
			Expect(c.GetConfigValue("provider.top_p")).To(Equal("0.85"))
			Expect(c.GetConfigValue("provider.max_tokens")).To(Equal("2048"))

			Expect(c.SetConfigValue("provider.top_p", "")).To(Succeed())
			Expect(c.GetConfigValue("provider.top_p")).To(BeEmpty())
		})

		It("rejects invalid numeric and bool values", func() {
			Expect(c.SetConfigValue("provider.temperature", "hot")).To(MatchError(ContainSubstring("provider.temperature")))
			Expect(c.SetConfigValue("provider.max_tokens", "-3")).To(MatchError(ContainSubstring("provider.max_tokens")))
			Expect(c.SetConfigValue("provider.strip_citations", "maybe")).To(MatchError(ContainSubstring("provider.strip_citations")))
		})

		It("returns defaults when no config file exists", func() {
			Expect(c.GetConfigValue("storage.driver")).To(Equal("file"))
			Expect(c.GetConfigValue("client.server_target")).To(Equal("http://localhost:8080"))
			Expect(c.GetConfigValue("storage.postgres_dsn")).To(BeEmpty())
		})

		It("returns error for unknown keys", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
			_, err := c.GetConfigValue("nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("lists every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys[0]).To(Equal("storage.driver"))
		Expect(keys).To(ContainElements("provider.scene", "events.brokers", "media.inbox", "media.slides_theme"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
	})

	It("returns a copy", func() {
		keys := config.ValidConfigKeys()
		keys[0] = "mutated"
		Expect(config.ValidConfigKeys()[0]).To(Equal("storage.driver"))
	})

	It("does not accept unknown keys", func() {
		Expect(config.IsValidConfigKey("vector_store.provider")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("binds the preset and its default model", func() {
		cfg, err := config.PresetConfig("DeepSeek")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Provider.Name).To(Equal("deepseek"))
		Expect(cfg.Provider.Model).To(Equal("deepseek-chat"))
		Expect(cfg.Storage.Driver).To(Equal("file"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("nonexistent")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("lists preset names", func() {
		Expect(config.ValidPresetNames()).To(ContainElements("gpt", "deepseek", "skywork", "ollama"))
	})
})

var _ = Describe("ProviderConfig.Params", func() {
	It("returns explicit values without a scene", func() {
		temp := 0.1
		params, err := config.ProviderConfig{Temperature: &temp}.Params()
		Expect(err).NotTo(HaveOccurred())
		Expect(params.Temperature).To(HaveValue(Equal(0.1)))
		Expect(params.MaxTokens).To(BeNil())
	})

	It("fills unset values from the scene", func() {
		temp := 0.1
		params, err := config.ProviderConfig{Scene: "article", Temperature: &temp}.Params()
		Expect(err).NotTo(HaveOccurred())

		scene, ok := llm.Scene("article")
		Expect(ok).To(BeTrue())
		Expect(params.Temperature).To(HaveValue(Equal(0.1)))
		Expect(params.MaxTokens).To(Equal(scene.MaxTokens))
		Expect(params.TopP).To(Equal(scene.TopP))
	})

	It("rejects an unknown scene", func() {
		_, err := config.ProviderConfig{Scene: "poetry-slam"}.Params()
		Expect(err).To(MatchError(ContainSubstring("unknown scene")))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("server.listen")).To(Equal(":8080"))
		Expect(v.GetString("provider.name")).To(Equal("ollama"))
		Expect(v.GetString("events.driver")).To(Equal("none"))
	})

	It("reads config file values over defaults", func() {
		writeConfig(tmpDir, "[provider]\nname = \"gpt\"\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("provider.name")).To(Equal("gpt"))
		Expect(v.GetString("server.listen")).To(Equal(":8080"))
	})

	It("env vars take precedence over config file values", func() {
		writeConfig(tmpDir, "[provider]\nname = \"gpt\"\n")

		os.Setenv("SCRIBE_PROVIDER_NAME", "yi")
		defer os.Unsetenv("SCRIBE_PROVIDER_NAME")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("provider.name")).To(Equal("yi"))
	})

	It("builds a Config from the resolved values", func() {
		writeConfig(tmpDir, "[provider]\nname = \"skywork\"\ntemperature = 0.3\nmax_tokens = 2048\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Provider.Name).To(Equal("skywork"))
		Expect(cfg.Provider.Temperature).To(HaveValue(Equal(0.3)))
		Expect(cfg.Provider.MaxTokens).To(HaveValue(Equal(2048)))
		Expect(cfg.Provider.TopP).To(BeNil())
		Expect(cfg.Storage.Driver).To(Equal("file"))
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via the registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
		Expect(v.GetString("server.listen")).To(Equal(":7777"))
	})

	It("falls through to config when the flag is not set", func() {
		writeConfig(tmpDir, "[server]\nlisten = \":5555\"\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})

		Expect(v.GetString("server.listen")).To(Equal(":5555"))
	})

	It("skips bindings for unknown registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})
		Expect(v.GetString("server.listen")).To(Equal(":8080"))
	})

	It("pulls name, shorthand, default and description from the FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var provider string
		var strip bool
		config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &provider)
		config.AddBoolFlag(cmd, config.Flags, config.FlagStripCitations, &strip)

		f := cmd.Flags().Lookup("provider")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("p"))
		Expect(f.DefValue).To(Equal("ollama"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagProvider].Description))

		b := cmd.Flags().Lookup("strip-citations")
		Expect(b).NotTo(BeNil())
		Expect(b.DefValue).To(Equal("false"))
	})
})
