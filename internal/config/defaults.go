package config

const (
	defaultDataDir             = "~/.local/share/slidecast"
	defaultLogDir              = "~/.local/share/slidecast/logs"
	defaultRenderDir           = "~/.local/share/slidecast/renders"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSlideWidth          = 1920
	defaultSlideHeight         = 1080
	defaultRenderBackend       = "decksh"
	defaultSofficeBinary       = "soffice"
	defaultSofficeTimeout      = 300
	defaultGraphRequestTimeout = 120
	defaultProvider            = "composer"
	defaultProviderTimeout     = 60
	defaultPollInterval        = 10
	defaultAvatarTimeout       = 1800
	defaultIntroTimeout        = 1200
	defaultRenderJobTimeout    = 3600
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 30
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			RenderDir: defaultRenderDir,
		},
		Rendering: Rendering{
			Priority:            []string{"soffice", "decksh"},
			DefaultBackend:      defaultRenderBackend,
			SlideWidth:          defaultSlideWidth,
			SlideHeight:         defaultSlideHeight,
			CacheEnabled:        true,
			SofficeBinary:       defaultSofficeBinary,
			SofficeTimeout:      defaultSofficeTimeout,
			GraphRequestTimeout: defaultGraphRequestTimeout,
		},
		Providers: Providers{
			Default: defaultProvider,
			Composer: Composer{
				RequestTimeout: defaultProviderTimeout,
			},
			Generative: Generative{
				RequestTimeout: defaultProviderTimeout,
			},
		},
		Generation: Generation{
			PollInterval:  defaultPollInterval,
			AvatarTimeout: defaultAvatarTimeout,
			IntroTimeout:  defaultIntroTimeout,
			RenderTimeout: defaultRenderJobTimeout,
		},
		Preflight: Preflight{
			CheckIntroVideo: true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Rendering:      true,
			Generation:     true,
			Preflight:      true,
			Errors:         true,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
