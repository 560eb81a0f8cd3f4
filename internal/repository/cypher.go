package repository

var schemaCypher = []string{
	`CREATE CONSTRAINT account_id IF NOT EXISTS FOR (a:Account) REQUIRE a.accountId IS UNIQUE`,
	`CREATE CONSTRAINT run_id IF NOT EXISTS FOR (r:DetectionRun) REQUIRE r.runId IS UNIQUE`,
	`CREATE CONSTRAINT ring_key IF NOT EXISTS FOR (g:FraudRing) REQUIRE g.key IS UNIQUE`,
}

const createRunCypher = `
MERGE (r:DetectionRun {runId: $runId})
SET r += $props,
    r.createdAt = $createdAt
RETURN r.runId AS runId
`

const upsertAccountsCypher = `
MATCH (r:DetectionRun {runId: $runId})
UNWIND $rows AS row
MERGE (a:Account {accountId: row.accountId})
MERGE (a)-[s:SCORED_IN]->(r)
SET s.suspicionScore = row.score,
    s.patterns = row.patterns,
    s.ringId = row.ringId
`

const upsertTransfersCypher = `
UNWIND $rows AS row
MERGE (sender:Account {accountId: row.from})
MERGE (receiver:Account {accountId: row.to})
MERGE (sender)-[t:SENT_TO {runId: $runId}]->(receiver)
SET t.amount = row.amount,
    t.count = row.count,
    t.firstSeen = row.firstSeen,
    t.lastSeen = row.lastSeen,
    t.transactionIds = row.transactionIds
`

const upsertRingsCypher = `
MATCH (r:DetectionRun {runId: $runId})
UNWIND $rows AS row
MERGE (g:FraudRing {key: row.key})
SET g.ringId = row.ringId,
    g.runId = $runId,
    g.patternType = row.patternType,
    g.riskScore = row.riskScore,
    g.size = row.size
MERGE (g)-[:DETECTED_IN]->(r)
`

const linkRingMembersCypher = `
UNWIND $rows AS row
MATCH (g:FraudRing {key: row.key})
MERGE (a:Account {accountId: row.accountId})
MERGE (a)-[:MEMBER_OF]->(g)
`

const fetchRunCypher = `
MATCH (r:DetectionRun {runId: $runId})
RETURN r.runId AS runId,
       r.createdAt AS createdAt,
       r.totalAccountsAnalyzed AS totalAccountsAnalyzed,
       r.suspiciousAccountsFlagged AS suspiciousAccountsFlagged,
       r.fraudRingsDetected AS fraudRingsDetected,
       r.processingTimeSeconds AS processingTimeSeconds
`

const fetchRunRingsCypher = `
MATCH (g:FraudRing)-[:DETECTED_IN]->(:DetectionRun {runId: $runId})
OPTIONAL MATCH (a:Account)-[:MEMBER_OF]->(g)
WITH g, a ORDER BY a.accountId
WITH g, collect(a.accountId) AS members
RETURN g.ringId AS ringId,
       g.patternType AS patternType,
       g.riskScore AS riskScore,
       members
ORDER BY riskScore DESC, ringId ASC
`
