// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reload coordinates a background document reindex on the backend.
//
// A Poller moves through Idle, Started, Polling and Completed. Start asks
// the backend to reindex (or joins a reindex already running), then polls
// the status endpoint on a fixed interval until the backend reports the job
// finished. The outcome is delivered exactly once, after which the Poller is
// Idle again.
//
//	p := reload.NewPoller(client, reload.WithInterval(3*time.Second))
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	out := <-p.Done()
package reload
