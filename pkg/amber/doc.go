// Package amber provides a hierarchical intent chatbot: a user utterance is
// embedded and routed down a tree of topics, one confidence-gated level at a
// time, to a pre-authored answer.
//
// Quick start:
//
//	bot, err := amber.New(amber.WithModelDir("models/all-MiniLM-L12-v2"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bot.Close()
//
//	replies, _ := bot.Ask(ctx, "visitor-1", "What projects have you built?")
//	fmt.Println(replies[0].Text)
//
// Each session id carries its own conversation context, so follow-ups
// ("tell me about the log classifier", "what about for that?") resolve
// against what was discussed before. A Bot is safe for concurrent use.
// Create once, reuse across requests.
package amber
