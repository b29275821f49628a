package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeCompareFiles() string {
	return `Compares two source files for structural similarity using winnowing fingerprints.
Identifiers are normalized before hashing, so renamed variables, functions and types still match.

USE WHEN:
- Checking whether one file was copied or adapted from another
- Reviewing a suspected plagiarism or license-violation case
- Confirming that a refactor really is a copy with renamed symbols

INTERPRETING RESULTS:
- similarity is per file: the share of that file's fingerprinted text found in the other file
- score is the larger of the two similarities
- A high score on one side only means that file is largely contained in the other
- Above 0.8: near-copy; 0.5-0.8: substantial shared code; below 0.5: incidental overlap
- identical is true when the two files are byte-for-byte equal

METRICS RETURNED:
- Per file: similarity, matched and selected coverage, byte ranges of shared regions
- Optional snippets with line numbers and source text of each shared region
- Thresholds used and BLAKE3 digests of both files`
}

func describeCompareDirectory() string {
	return `Compares every pair of same-language source files under the given paths.

USE WHEN:
- Finding copy-pasted modules across a codebase
- Auditing a set of submissions for shared code
- Locating clusters of near-duplicate files before a cleanup

INTERPRETING RESULTS:
- pairs are sorted by score, highest first, and filtered by min_similarity
- clusters group files connected by reported pairs; a large cluster is a family of copies
- stats summarize the score distribution over every compared pair
- skipped lists files too short to fingerprint or that failed to parse

METRICS RETURNED:
- Pairs: both paths, language, per-file similarity, score, identical flag, byte ranges
- Clusters, skipped files, and mean/median/p95/max scores`
}

func describeListLanguages() string {
	return `Lists the languages winnow can fingerprint and the aliases accepted for each.

USE WHEN:
- Choosing a value for the language parameter of another tool
- Checking whether a file type is supported

INTERPRETING RESULTS:
- name is the canonical language identifier
- aliases are alternative names accepted anywhere a language is expected

METRICS RETURNED:
- One entry per language with its aliases`
}
