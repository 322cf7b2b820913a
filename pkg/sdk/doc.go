// Package faqsearch is an in-process Go client for semantic FAQ search.
//
// It wires the same pipeline as the HTTP service: the query is embedded,
// the vector index (Valkey, Redis or Pinecone) is asked for its nearest
// neighbours, and the hits come back as ranked {score, source, content}.
//
//	client, err := faqsearch.New(ctx,
//	    faqsearch.WithValkey("localhost:6379", ""),
//	    faqsearch.WithIndex("faq_idx"),
//	    faqsearch.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "text-embedding-3-small"),
//	    faqsearch.WithDimensions(1536),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	hits, err := client.Search(ctx, "What is the refund policy?", 2)
//
// Errors can be inspected with errors.Is against ErrValidation,
// ErrUpstreamTransient and ErrUpstreamFatal.
package faqsearch
