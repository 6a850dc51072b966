package ratelimit

import "time"

// Preset names. Each maps to a Config; the limiter logic is identical for
// all of them.
const (
	PresetAPI           = "api"
	PresetAuth          = "auth"
	PresetCreatePost    = "createPost"
	PresetCreateComment = "createComment"
	PresetInteractions  = "interactions"
	PresetSearch        = "search"
	PresetUpload        = "upload"
	PresetStrict        = "strict"
)

// Presets holds the named admission configurations. These are policy
// values, not code paths.
var Presets = map[string]Config{
	PresetAPI:           {Limit: 100, Window: time.Minute},
	PresetAuth:          {Limit: 5, Window: 15 * time.Minute},
	PresetCreatePost:    {Limit: 10, Window: time.Hour},
	PresetCreateComment: {Limit: 30, Window: time.Hour},
	PresetInteractions:  {Limit: 60, Window: time.Minute},
	PresetSearch:        {Limit: 30, Window: time.Minute},
	PresetUpload:        {Limit: 20, Window: time.Hour},
	PresetStrict:        {Limit: 3, Window: time.Hour},
}
