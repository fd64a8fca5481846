package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/flowerkit/internal/config"
	"github.com/John-Robertt/flowerkit/internal/dataset"
	"github.com/John-Robertt/flowerkit/internal/domain"
	"github.com/John-Robertt/flowerkit/internal/flowerlist"
	"github.com/John-Robertt/flowerkit/internal/infra/fsx"
	"github.com/John-Robertt/flowerkit/internal/provider"
)

// Execute 执行一次抓图批处理，并返回结果汇总。
//
// 单条记录的网络失败只会清空该记录的补全字段，不会中断批处理；
// 只有读清单/写输出失败才返回 error。ctx 被取消时停止处理剩余记录，但仍写出已有结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry) (domain.FetchReport, error) {
	return ExecuteWithObserver(ctx, eff, reg, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, obs Observer) (domain.FetchReport, error) {
	log := slog.Default()

	rep := domain.FetchReport{
		Source:    eff.Source,
		Offline:   eff.Offline,
		StartedAt: time.Now().UTC(),
		Failed:    []string{},
	}

	parsed, err := flowerlist.ParseFile(eff.Input)
	if err != nil {
		return rep, fmt.Errorf("读取花名清单失败：%w", err)
	}
	for _, name := range parsed.Duplicates {
		log.Warn("花名重复，保留首次出现的记录", "name", name)
	}
	records := parsed.Records
	total := len(records)

	if obs != nil {
		obs.OnStart(eff, total)
	}

	var lim *rate.Limiter
	if eff.Delay > 0 {
		lim = rate.NewLimiter(rate.Every(eff.Delay), 1)
	}

	for i := range records {
		if eff.Offline {
			// 离线模式：只产出模板，不碰网络。
			records[i].Clear()
			if obs != nil {
				obs.OnItemDone(i+1, total, ItemResult{Record: records[i]})
			}
			continue
		}
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				rep.Interrupted = true
				break
			}
		}

		started := time.Now()
		attempts, err := resolveOne(ctx, log, reg, eff.Source, &records[i])
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				rep.Interrupted = true
				break
			}
			rep.Failed = append(rep.Failed, records[i].Name)
		}
		if obs != nil {
			obs.OnItemDone(i+1, total, ItemResult{
				Record:   records[i],
				Attempts: attempts,
				Err:      err,
				Elapsed:  time.Since(started),
			})
		}
	}

	rep.Records = records
	if err := dataset.WriteFlowers(eff.Output, records); err != nil {
		rep.FinishedAt = time.Now().UTC()
		rep.Finalize()
		if fsx.IsNotRegularFile(err) {
			return rep, fmt.Errorf("输出路径不是普通文件：%w", err)
		}
		return rep, fmt.Errorf("写入 %s 失败：%w", eff.Output, err)
	}

	rep.FinishedAt = time.Now().UTC()
	rep.Finalize()
	log.Info("抓图完成",
		"total", rep.Summary.Total,
		"found", rep.Summary.Found,
		"missing", rep.Summary.Missing,
		"failed", rep.Summary.Failed,
		"output", eff.Output,
	)
	if obs != nil {
		obs.OnFinish(rep)
	}
	if rep.Interrupted {
		return rep, ctx.Err()
	}
	return rep, nil
}

// resolveOne 解析单条记录并写回，返回解析链路；网络失败时清空三个补全字段并返回 error。
func resolveOne(ctx context.Context, log *slog.Logger, reg provider.Registry, source string, rec *domain.FlowerRecord) ([]domain.Attempt, error) {
	log = log.With("request_id", uuid.NewString(), "name", rec.Name, "source", source)

	res, err := provider.Resolve(ctx, reg, source, rec.Name)
	if err != nil {
		rec.Clear()
		log.Error("抓取失败", "error", err, "hint", provider.Describe(err))
		return nil, err
	}
	for _, at := range res.Attempts {
		log.Debug("解析尝试",
			"site", at.Site,
			"stage", at.Stage,
			"query", at.Query,
			"title", at.Title,
			"snippet", at.Snippet,
			"hit", at.Hit,
		)
	}

	rec.Apply(res)
	if rec.HasImage() {
		log.Debug("找到图片", "image_url", res.ImageURL, "page_url", res.PageURL, "via", res.Source)
	} else {
		log.Info("未找到图片")
	}
	return res.Attempts, nil
}
