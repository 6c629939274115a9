package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/status-agent/status-agent/internal/agent"
	"github.com/status-agent/status-agent/internal/cache"
	"github.com/status-agent/status-agent/internal/config"
	"github.com/status-agent/status-agent/internal/logging"
	"github.com/status-agent/status-agent/internal/notify"
	"github.com/status-agent/status-agent/internal/server"
	"github.com/status-agent/status-agent/internal/server/routes"
	"github.com/status-agent/status-agent/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["status_url"] = cfg.StatusURL
		fields["generation"] = cfg.CacheName
		fields["strategy"] = cfg.Strategy
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	store, err := cache.NewStore(cfg.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	// 启动遵循"配置 → 缓存存储 → Agent 初始化/激活 → Fiber server"顺序，
	// 保证首个请求到达时缓存已预热、旧代已清理。
	hub := notify.NewHub(logger)
	client := server.NewUpstreamClient(cfg)
	ag := agent.New(cfg, client, store, hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ag.Initialize(ctx)
	ag.Activate(ctx)
	go ag.RunPeriodic(ctx)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["status_url"] = cfg.StatusURL
	fields["generation"] = cfg.CacheName
	fields["strategy"] = cfg.Strategy
	fields["listen_port"] = cfg.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, ag, hub, client, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("status-agent", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 STATUS_AGENT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("STATUS_AGENT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(
	cfg *config.Config,
	ag *agent.Agent,
	hub *notify.Hub,
	client *http.Client,
	logger *logrus.Logger,
) error {
	pass, err := server.NewPassthrough(client, logger, cfg.OriginURL)
	if err != nil {
		return err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Status:      ag,
		Passthrough: pass,
		StatusPath:  cfg.StatusPath(),
		ListenPort:  cfg.ListenPort,
	})
	if err != nil {
		return err
	}
	routes.RegisterControlRoutes(app, ag, hub, logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.ListenPort,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", cfg.ListenPort))
}
