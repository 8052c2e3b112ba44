// Package artifact locates and (re)builds a project's IR artifact.
//
// The artifact is the stable-MIR JSON the build leaves at
// <target>/debug/linked.smir.json. Resolve always runs the build tool
// (cleaning first on request); Require only checks that a previous build
// left the artifact behind and never builds. Proof sessions without
// --reload go through Require so a stale or missing artifact is reported
// instead of silently rebuilt.
package artifact
