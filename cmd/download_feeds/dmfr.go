package main

// registry is the minimal Distributed Mobility Feed Registry shape this
// binary needs: a list of feeds, each optionally carrying a URL to its
// current static GTFS zip. Grounded on original_source's
// farebox::dmfr::DistributedMobilityFeedRegistry / download_feeds.rs,
// trimmed to the one field this command actually reads.
type registry struct {
	Feeds []registryFeed `json:"feeds"`
}

type registryFeed struct {
	ID   string `json:"id"`
	URLs struct {
		StaticCurrent string `json:"static_current"`
	} `json:"urls"`
}
