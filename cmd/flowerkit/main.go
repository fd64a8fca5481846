package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/flowerkit/internal/app/fetch"
	"github.com/John-Robertt/flowerkit/internal/config"
	"github.com/John-Robertt/flowerkit/internal/infra/httpx"
	"github.com/John-Robertt/flowerkit/internal/provider"
	"github.com/John-Robertt/flowerkit/internal/provider/openverse"
	"github.com/John-Robertt/flowerkit/internal/provider/wikipedia"
	"github.com/John-Robertt/flowerkit/internal/validate"
)

// 退出码：0 成功；1 运行失败/校验不通过；2 参数或配置错误。
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// exitError 携带退出码；消息为空表示已经输出过，不再重复打印。
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 运行 CLI 并返回退出码（测试直接调用，不经过 os.Exit）。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ran := false
	root := newRootCmd(stdout, stderr, &ran)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	if code := config.Code(err); code != "" {
		fmt.Fprintf(stderr, "配置错误：%v\n", err)
		return exitUsage
	}

	fmt.Fprintf(stderr, "错误：%v\n", err)
	if !ran {
		// 尚未进入子命令：未知命令/flag 解析失败。
		fmt.Fprintf(stderr, "使用 \"%s --help\" 查看用法。\n", root.Name())
		return exitUsage
	}
	return exitFail
}

func newRootCmd(stdout, stderr io.Writer, ran *bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "flowerkit",
		Short:         "花卉图鉴数据工具：抓取花卉图片、校验花名元信息",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "配置文件路径（默认读取当前目录下的 "+config.FileName+"，可选）")
	pf.String("log-level", config.DefaultLogLevel, "日志级别：debug|info|warn|error")
	pf.BoolP("verbose", "v", false, "等价于 --log-level=debug")

	root.AddCommand(newFetchCmd(stdout, stderr, ran), newValidateCmd(stdout, stderr, ran))
	return root
}

func newFetchCmd(stdout, stderr io.Writer, ran *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "按花名清单抓取图片，写出 flowers.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			return runFetch(cmd, stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.String("input", config.DefaultInput, "花名清单（Markdown）")
	fs.String("output", config.DefaultOutput, "输出 JSON")
	fs.String("source", config.DefaultSource, "图片来源：openverse|wikipedia")
	fs.Bool("offline", false, "不访问网络，只输出空字段模板")
	// 时长 flag 声明为字符串：与配置文件/环境变量一样，既接受 "200ms" 也接受秒数 "0.2"。
	fs.String("delay", config.DefaultDelay.String(), "两次请求之间的间隔（Go 时长或秒数）")
	fs.String("timeout", config.DefaultTimeout.String(), "单次请求超时（Go 时长或秒数）")
	fs.String("openverse-base", config.DefaultOpenverseBase, "Openverse API 地址")
	fs.String("wikipedia-api-base", config.DefaultWikipediaAPIBase, "维基百科 API 地址（使用 {site} 占位符）")
	fs.String("wikipedia-page-base", config.DefaultWikipediaPageBase, "维基百科词条页地址（使用 {site} 占位符）")
	fs.Bool("insecure", false, "所有请求都不校验证书（不推荐）")
	fs.Bool("no-proxy", false, "忽略 HTTP_PROXY/HTTPS_PROXY 环境变量")
	fs.String("proxy-url", "", "显式代理地址（优先于环境变量）")
	fs.Bool("no-insecure-fallback", false, "证书校验失败时不自动改为不校验重试")
	fs.String("user-agent", config.DefaultUserAgent, "请求使用的 User-Agent")
	return cmd
}

func newValidateCmd(stdout, stderr io.Writer, ran *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "校验 flowers.json 与 flower_meta.json 是否一致",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			return runValidate(cmd, stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.String("flowers", config.DefaultOutput, "抓图输出的 flowers.json")
	fs.String("meta", config.DefaultMeta, "人工维护的 flower_meta.json")
	return cmd
}

// loadConfig 合并 flag/环境变量/配置文件，并按最终配置初始化默认 logger。
func loadConfig(cmd *cobra.Command, stderr io.Writer, scope config.Scope) (config.EffectiveConfig, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.EffectiveConfig{}, err
	}
	// validate 的 --flowers 对应 fetch 的输出文件。
	if f := cmd.Flags().Lookup("flowers"); f != nil {
		if err := v.BindPFlag(config.KeyOutput, f); err != nil {
			return config.EffectiveConfig{}, err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, &exitError{code: exitFail, msg: fmt.Sprintf("读取当前目录失败：%v", err)}
	}
	explicit, _ := cmd.Flags().GetString("config")
	eff, err := config.Load(v, cwd, explicit, scope)
	if err != nil {
		return config.EffectiveConfig{}, err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		eff.LogLevel = "debug"
	}
	slog.SetDefault(newLogger(stderr, eff.LogLevel))
	if eff.File != "" {
		slog.Debug("已读取配置文件", "path", eff.File)
	}
	return eff, nil
}

func runFetch(cmd *cobra.Command, stdout, stderr io.Writer) error {
	eff, err := loadConfig(cmd, stderr, config.ScopeFetch)
	if err != nil {
		return err
	}

	reg, err := newRegistry(eff)
	if err != nil {
		return &exitError{code: exitUsage, msg: fmt.Sprintf("初始化网络客户端失败：%v", err)}
	}

	ui := newProgressUI(stderr, isTTY(stderr))
	defer ui.Close()

	rep, err := fetch.ExecuteWithObserver(cmd.Context(), eff, reg, ui)
	if err != nil && !rep.Interrupted {
		return &exitError{code: exitFail, msg: fmt.Sprintf("抓图失败：%v", err)}
	}

	emitMissing(stdout, rep.Missing)
	if rep.Interrupted {
		return &exitError{code: exitFail, msg: fmt.Sprintf("已中断，未处理的花名保持空字段：%s", eff.Output)}
	}
	return nil
}

func runValidate(cmd *cobra.Command, stdout, stderr io.Writer) error {
	eff, err := loadConfig(cmd, stderr, config.ScopeValidate)
	if err != nil {
		return err
	}

	ok, err := validate.Run(eff.Output, eff.Meta, stdout)
	if err != nil {
		return &exitError{code: exitFail, msg: err.Error()}
	}
	if !ok {
		return &exitError{code: exitFail}
	}
	return nil
}

func newRegistry(eff config.EffectiveConfig) (provider.Registry, error) {
	client, err := httpx.NewClient(httpx.Options{
		ProxyURL:           eff.ProxyURL,
		NoProxy:            eff.NoProxy,
		Insecure:           eff.Insecure,
		NoInsecureFallback: eff.NoInsecureFallback,
		Timeout:            eff.Timeout,
		UserAgent:          eff.UserAgent,
		Logger:             slog.Default(),
	})
	if err != nil {
		return provider.Registry{}, err
	}

	return provider.NewRegistry(
		openverse.Provider{BaseURL: eff.OpenverseBase, Client: client},
		&wikipedia.Provider{APIBase: eff.WikipediaAPIBase, PageBase: eff.WikipediaPageBase, Client: client},
	)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func emitMissing(w io.Writer, missing []string) {
	if len(missing) == 0 {
		return
	}
	fmt.Fprintln(w, "Missing images:")
	for _, name := range missing {
		fmt.Fprintf(w, "- %s\n", name)
	}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
