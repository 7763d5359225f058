// Package core provides the foundational domain types and service contracts
// shared by every ragmesh component. It defines:
//
//   - Exchanges (one user query plus one assistant answer, the unit of memory)
//   - Web search results and moderation results
//   - Narrow interfaces for the external collaborators: document retrieval,
//     live web search and content moderation
//
// Implementations live in their own packages (retrieval, websearch,
// moderation) so the routing and memory logic stays decoupled from vendor SDKs
// and storage engines.
package core
