package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/hapi-server/hapifetch/internal/cache"
	"github.com/hapi-server/hapifetch/internal/config"
	"github.com/hapi-server/hapifetch/internal/diag"
	"github.com/hapi-server/hapifetch/internal/fetch"
	"github.com/hapi-server/hapifetch/internal/logging"
	"github.com/hapi-server/hapifetch/internal/server"
	"github.com/hapi-server/hapifetch/internal/upstream"
	"github.com/hapi-server/hapifetch/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	outputPath  string
	url         string
	checkOnly   bool
	showVersion bool
	serve       bool
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

	// 配置加载期间的警告（未知键）同样经由 Reporter 输出。
	reporter := diag.NewReporter(stdErr)
	diag.SetDefault(reporter)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	if cfg.Debug {
		reporter = diag.NewReporter(stdErr, diag.WithDebug(true))
		diag.SetDefault(reporter)
	}
	defer reporter.Recover()

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", cfg.Source)
		fields["cache_dir"] = cfg.CacheDir
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	store, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", cfg.Source)
	fields["cache_dir"] = store.BasePath()
	fields["version"] = version.Full()
	fields["context"] = reporter.Context().String()
	logger.WithFields(fields).Debug("配置加载完成")

	if opts.serve {
		if err := startMirror(cfg, store, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.url == "" {
		fmt.Fprintln(stdErr, "缺少 URL 参数：hapifetch [flags] <url>")
		return 2
	}

	client, err := upstream.NewClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化上游客户端失败: %v\n", err)
		return 1
	}
	fetcher := fetch.New(client, store, logger, reporter)

	ctx := context.Background()
	var res fetch.Result
	if opts.outputPath != "" {
		local, absErr := filepath.Abs(opts.outputPath)
		if absErr != nil {
			return reporter.Handle(absErr)
		}
		res, err = fetcher.EnsureFresh(ctx, local, opts.url)
	} else {
		res, err = fetcher.EnsureCached(ctx, opts.url)
	}
	if err != nil {
		return reporter.Handle(err)
	}

	fmt.Fprintln(stdOut, res.Entry.LocalPath)
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("hapifetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		outputFlag string
		checkOnly  bool
		showVer    bool
		serve      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./hapifetch.toml，可被 HAPIFETCH_CONFIG 覆盖）")
	fs.StringVar(&outputFlag, "o", "", "本地文件路径（默认按 URL 存放在 CacheDir 下）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&serve, "serve", false, "以 HTTP 镜像方式提供 CacheDir")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if fs.NArg() > 1 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 只接受一个 URL，得到 %d 个", fs.NArg())
	}

	path := os.Getenv("HAPIFETCH_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		outputPath:  outputFlag,
		url:         fs.Arg(0),
		checkOnly:   checkOnly,
		showVersion: showVer,
		serve:       serve,
	}, nil
}

func startMirror(cfg *config.Config, store cache.Store, logger *logrus.Logger) error {
	port := cfg.MirrorPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Store:      store,
		ListenPort: port,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action":    "listen",
		"port":      port,
		"cache_dir": store.BasePath(),
	}).Info("Fiber 镜像服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}
