// Package generation turns structured facts into articles and enriches
// articles with images and narrated video.
//
// GenerateArticle is the required path: it applies the quality gate and the
// exact duplicate gate before inserting content, and it owns the fact's
// processed flag. GenerateImages and GenerateVideo are enhancements; every
// failure inside them is logged and reported as SuccessNoWork so they never
// block monetization or publishing.
package generation
