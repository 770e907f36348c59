// Package runboard は店舗内の靴取り寄せリクエストを管理するキューサービス。
//
// 販売スタッフ（seller）が売り場からリクエストを起票し、ランナー（runner）が
// バックヤードでリクエストを引き受けて完了させる。ライブビューは店舗単位の
// 進行状況をSSEでリアルタイム配信する。
//
// エントリーポイントは cmd/runboard にあり、serve / worker / migrate /
// healthcheck のサブコマンドを提供する。
package runboard
