package amber_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hejijunhao/amber/pkg/amber"
)

func Example() {
	bot, err := amber.New(amber.WithLexicalEmbedder(), amber.WithSeed(1))
	if err != nil {
		log.Fatal(err)
	}
	defer bot.Close()

	ctx := context.Background()
	replies, err := bot.Ask(ctx, "visitor", "How can I contact you? What projects have you built?")
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range replies {
		fmt.Printf("[%s] %s\n", r.Kind, r.Text)
	}

	replies, err = bot.Ask(ctx, "visitor", "tell me about the log classifier")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("[%s] %s\n", replies[0].Kind, replies[0].Text)
	// Output:
	// [answer] You can reach Amber at hello@amber.dev.
	// [clarify] Amber has built an intent engine, a log classifier and this portfolio site. Which one would you like to hear about?
	// [answer] The log classifier embeds raw log lines and maps them onto a fixed taxonomy of event types.
}

func ExampleBot_Topics() {
	bot, err := amber.New(amber.WithLexicalEmbedder())
	if err != nil {
		log.Fatal(err)
	}
	defer bot.Close()

	for _, t := range bot.Topics().Children {
		fmt.Println(t.Name, len(t.Children))
	}
	// Output:
	// Projects 3
	// Skills 2
	// Experience 2
	// Contact 0
}
