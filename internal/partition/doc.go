// Package partition reduces a weighted relation to a flat partition of its
// entities.
//
// Two strategies are provided:
//   - ConnectedComponents: any positive co-occurrence joins two entities
//   - Hierarchical: complete-linkage clustering on 1/weight distances, cut
//     at a threshold, so a cluster requires every member pair to co-occur
//
// Both return labels 1..k indexed by entity. Labels are assigned in
// discovery order: entities are scanned in index order and the first
// unlabeled entity opens the next label. Relabeling the input groups never
// changes the resulting labels.
package partition
