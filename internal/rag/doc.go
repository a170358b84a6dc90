// Package rag implements the question-answering workflow:
// retrieve → filter → generate → validate, with a bounded retry on
// generation.
//
// The workflow is a small state machine over a structured State record.
// Retrieval pulls passages from every configured collection in registration
// order; a relevance grader filters them one by one; the generator answers
// from the retained passages; a groundedness grader and an answer grader
// validate the result, re-entering generation on rejection up to a
// configured attempt bound.
//
// All LLM calls go through the Grader and Generator interfaces so the
// workflow can be exercised without a provider. LLM is the Genkit-backed
// implementation of both.
package rag
