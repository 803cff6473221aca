// Package graphcontent implements the content packaging and publish
// pipeline for graph-backed educational content: extraction of uploaded
// content packages (media asset resolution, assessment item sync, markup
// rewriting), flattened manifest assembly over the structural child tree,
// versioned bundle creation, and publish finalization.
//
// The package coordinates three collaborators behind interfaces: a
// GraphStore holding content nodes and relations, a BlobStore for object
// storage, and an AssessmentStore for item and item-group nodes. Ready-made
// implementations live in the repo and storage subpackages.
//
// Basic usage:
//
//	graph := memory.New()
//	svc, err := graphcontent.New(
//	    graphcontent.WithGraphStore(graph),
//	    graphcontent.WithBlobStore(memorystorage.New()),
//	    graphcontent.WithAssessmentStore(memory.NewAssessments(graph)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := svc.Publish(ctx, graphcontent.PublishRequest{
//	    GraphID:   "domain",
//	    ContentID: "do_123",
//	})
package graphcontent
