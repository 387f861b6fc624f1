package config

const (
	defaultDataDir          = "~/.local/share/tabshot"
	defaultLogDir           = "~/.local/share/tabshot/logs"
	defaultAPIBind          = "127.0.0.1:7491"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultWindowWidth      = 1280
	defaultWindowHeight     = 800
	defaultTargetWidth      = 600
	defaultQuality          = 0.8
	defaultSettleDelayMS    = 2000
	defaultLoadTimeoutMS    = 15000
	defaultVisibleTimeoutMS = 5000
	defaultInPageTimeoutMS  = 10000
	defaultActivateSettleMS = 100
	defaultCacheEntries     = 256
	defaultCacheTTLSeconds  = 300
	defaultQuotaMB          = 512
	defaultNotifyTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Browser: Browser{
			Headless:     true,
			WindowWidth:  defaultWindowWidth,
			WindowHeight: defaultWindowHeight,
		},
		Capture: Capture{
			TargetWidth:      defaultTargetWidth,
			Quality:          defaultQuality,
			SettleDelayMS:    defaultSettleDelayMS,
			LoadTimeoutMS:    defaultLoadTimeoutMS,
			VisibleTimeoutMS: defaultVisibleTimeoutMS,
			InPageTimeoutMS:  defaultInPageTimeoutMS,
			ActivateSettleMS: defaultActivateSettleMS,
		},
		Storage: Storage{
			CacheEntries:    defaultCacheEntries,
			CacheTTLSeconds: defaultCacheTTLSeconds,
			QuotaMB:         defaultQuotaMB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Batch:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
