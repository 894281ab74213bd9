// Package conversation runs the per-session conversation loop: it opens a
// session with a greeting or a first answer, serves qualifying utterances
// until the user dismisses the bot, the idle window expires, a turn fails or
// the process shuts down, and then tears the session down exactly once.
//
// One Loop value serves any number of sessions; every session runs Run on
// its own goroutine.
//
//	loop, err := conversation.New(func(o *conversation.Options) {
//	    o.Responder = dispatcher
//	    o.Summarizer = summarizer
//	    o.Store = store
//	    o.Channel = ch
//	    o.Vocabulary = vocabulary
//	})
//	reason := loop.Run(ctx, sess, summon.Remainder, binding.Inbox())
package conversation
