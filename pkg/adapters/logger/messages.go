package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session (player)
		"Starting playback of %d streams": "%d 本のストリームの再生を開始します",
		"Interrupted, shutting down...":   "中断されました。シャットダウン中...",
		"Failed to add %s: %v":            "%s の追加に失敗しました: %v",
		"Command: %s":                     "コマンド: %s",
		"Command failed: %v":              "コマンドが失敗しました: %v",
		"Unknown command: %s":             "不明なコマンド: %s",
		"Summary written to %s":           "サマリーを %s に保存しました",

		// Membership (video)
		"Added stream %d: %s (%dx%d, %s, %d frames)":      "ストリーム %d を追加しました: %s (%dx%d, %s, %d フレーム)",
		"Removed stream %d: %s":                           "ストリーム %d を削除しました: %s",
		"Ignoring remove of stream %d: %d streams loaded": "ストリーム %d の削除を無視します: 読み込み済みは %d 本",
		"All %d streams ready":                            "全 %d ストリームの準備が完了しました",
		"Ignoring %s: no streams":                         "%s を無視します: ストリームがありません",
		"Ignoring %s: streams not ready":                  "%s を無視します: ストリームの準備ができていません",
		"Ignoring %s: seek in progress":                   "%s を無視します: シーク中です",
		"Ignoring %s: buffering":                          "%s を無視します: バッファリング中です",
		"Dropped %s event for %d subscribers":             "%s イベントを %d 件の購読者に配信できませんでした",

		// Playback control (video)
		"At the last frame, restarting from the first frame": "最終フレームにいるため、先頭から再生します",
		"At the first frame, restarting from the last frame": "先頭フレームにいるため、最終フレームから再生します",
		"Reached the end of every stream":                    "全ストリームが終端に到達しました",
		"Reached the first frame of every stream":            "全ストリームが先頭フレームに到達しました",
		"Speed set to %s":                "速度を %s に設定しました",
		"Direction set to %s":            "再生方向を %s に設定しました",
		"Seeking to %d ms":               "%d ms へシーク中",
		"Seek completed":                 "シークが完了しました",
		"Buffering on stream %d":         "ストリーム %d でバッファリング中",
		"Buffering finished":             "バッファリングが完了しました",
		"Failed to build clock: %v":      "クロックの作成に失敗しました: %v",
		"Failed to seek clock: %v":       "クロックのシークに失敗しました: %v",
		"Failed to set speed: %v":        "速度の設定に失敗しました: %v",
		"Render failed on stream %d: %v": "ストリーム %d の描画に失敗しました: %v",

		// Diff mode (video)
		"Diff mode enabled for streams %d and %d":                     "ストリーム %d と %d の差分モードを有効にしました",
		"Diff mode disabled":                                          "差分モードを無効にしました",
		"Ignoring diff mode: no comparer configured":                  "差分モードを無視します: 比較器が設定されていません",
		"Ignoring diff mode for streams %d and %d: %d streams loaded": "ストリーム %d と %d の差分モードを無視します: 読み込み済みは %d 本",
		"Compare failed: %v":                                          "比較に失敗しました: %v",
		"PSNR %.2f dB at stream %d":                                   "ストリーム %[2]d で PSNR %[1].2f dB",

		// Clock (timer)
		"Clock seeked to %d ms":            "クロックを %d ms にシークしました",
		"Failed to position clock: %v":     "クロックの位置決めに失敗しました: %v",
		"Reached the first frame, pausing": "先頭フレームに到達したため一時停止します",

		// Frame scheduling (stream)
		"Prefilling %d frames":               "%d フレームを先読み中",
		"Stream ready":                       "ストリームの準備が完了しました",
		"Frame %d not decoded yet, stalling": "フレーム %d が未デコードのため停止します",
		"Stall cleared":                      "停止が解消されました",
		"Seek to %d served from queue":       "%d へのシークをキューから処理しました",
		"Seek to %d requires decoder seek":   "%d へのシークにはデコーダーのシークが必要です",
		"Retrying decode at frame %d":        "フレーム %d のデコードを再試行します",
		"Stream ended early at frame %d":     "ストリームがフレーム %d で早期に終了しました",

		// Decoding (decoder)
		"Decoded %d frames (%s), range %d-%d": "%d フレームをデコードしました (%s)、範囲 %d-%d",
		"Decode failed: %v":                   "デコードに失敗しました: %v",
		"Decode request dropped, worker busy": "ワーカーが処理中のためデコード要求を破棄しました",

		// Snapshots
		"Saved snapshot %s": "スナップショットを保存しました: %s",
	})
}
