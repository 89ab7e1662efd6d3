// Package main provides localization for the vidsync CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Playback":      "再生",
		"Output":        "出力先",
		"Decoding":      "デコード",
		"Logging":       "ログ",
		"Demo":          "デモ",

		// Root command
		"Play several videos in lockstep": "複数の動画を同期して再生",
		"vidsync plays videos with different frame rates on one clock, frame accurately, forward and backward.": "vidsyncはフレームレートの異なる動画を1つのクロックでフレーム単位に正確に、順方向と逆方向に再生します。",

		// Play command
		"Play video files in sync": "動画ファイルを同期再生",
		"Play the given files on one clock. Commands are read from standard input: play, pause, toggle, step, back, seek <ms>, frame <pts>, speed <r>, dir, add <file>, remove <i>, diff <a> <b>|off, status, quit.": "指定したファイルを1つのクロックで再生します。コマンドは標準入力から読み込みます: play, pause, toggle, step, back, seek <ms>, frame <pts>, speed <r>, dir, add <file>, remove <i>, diff <a> <b>|off, status, quit。",

		// Demo command
		"Play synthetic streams headlessly and print the summary": "合成ストリームを画面なしで再生しサマリーを表示",

		// Probe command
		"Show MP4 video track metadata": "MP4の映像トラック情報を表示",
		"Codec":                         "コーデック",
		"Size":                          "サイズ",
		"Timebase":                      "タイムベース",
		"Frames":                        "フレーム数",
		"Duration":                      "再生時間",
		"Fragmented":                    "フラグメント化",

		// Version command
		"Show version information": "バージョン情報を表示",
		"vidsync version %s":       "vidsync バージョン %s",

		// Flags
		"YAML configuration file":                                "YAML設定ファイル",
		"Decoded frames kept per stream":                         "ストリームごとに保持するデコード済みフレーム数",
		"Playback speed as a rational or decimal (e.g., 1/2, 2)": "再生速度（分数または小数、例: 1/2, 2）",
		"Initial direction (forward, backward)":                  "初期の再生方向（forward, backward）",
		"Directory for frame snapshots":                          "フレームスナップショットの保存先",
		"Write one snapshot every N rendered frames":             "N フレーム描画ごとにスナップショットを1枚保存",
		"Scale snapshots to this width":                          "スナップショットをこの幅に縮小",
		"Compare two streams by index (e.g., 0,1)":               "2つのストリームを番号で比較（例: 0,1）",
		"Output playback summary to file (Markdown format)":      "再生サマリーをファイルに出力（Markdown形式）",
		"Log level (debug, info, warn, error)":                   "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                                "全てのログ出力を抑制",
		"Path to ffmpeg executable":                              "ffmpeg実行ファイルのパス",
		"Start playback once every stream is ready":              "全ストリームの準備ができたら再生を開始",
		"Exit when playback stops at either end":                 "再生が端で止まったら終了",
		"Frame rates of the synthetic streams":                   "合成ストリームのフレームレート",
		"Frames per synthetic stream":                            "合成ストリームのフレーム数",
		"Width of the synthetic streams":                         "合成ストリームの幅",
		"Height of the synthetic streams":                        "合成ストリームの高さ",

		// Error messages
		"At least one video file is required": "動画ファイルを1つ以上指定してください",

		// Summary content
		"Playback Summary": "再生サマリー",
		"Session":          "セッション",
		"Item":             "項目",
		"Value":            "値",
		"Speed":            "速度",
		"Direction":        "方向",
		"forward":          "順方向",
		"backward":         "逆方向",
		"Queue Size":       "キューサイズ",
		"Position":         "再生位置",
		"Total Frames":     "総フレーム数",
		"Elapsed":          "経過時間",
		"Streams":          "ストリーム",
		"No streams":       "ストリームなし",
		"File":             "ファイル",
		"FPS":              "FPS",
		"Last Frame":       "最終フレーム",
		"Presented":        "表示数",
		"Stalls":           "停止",
		"Decode Failures":  "デコード失敗",
		"Render Failures":  "描画失敗",
		"Diff":             "差分",
		"Comparisons":      "比較回数",
		"Identical":        "完全一致",
		"min":              "最小",
		"avg":              "平均",
		"max":              "最大",
		"Generated at":     "生成日時",
	})
}
